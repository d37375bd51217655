package worker

import (
	"Zyncrate/config"
	"Zyncrate/internal/mq"
	"Zyncrate/internal/task"
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type dlqMessage struct {
	Key      string    `json:"key"`
	Reason   string    `json:"reason"`
	Attempt  int       `json:"attempt"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// DeleteWorker consumes deletion tasks from RabbitMQ.
type DeleteWorker struct {
	cfg     config.Config
	deleter task.Deleter
	limiter *rate.Limiter
}

// NewDeleteWorker creates a worker that runs deletions through deleter.
func NewDeleteWorker(cfg config.Config, deleter task.Deleter) *DeleteWorker {
	return &DeleteWorker{
		cfg:     cfg,
		deleter: deleter,
		limiter: newLimiter(cfg.DeleteRate, cfg.DeleteBurst),
	}
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Run consumes until ctx is done or the channel closes.
func (w *DeleteWorker) Run(ctx context.Context) error {
	client, err := mq.Dial(w.cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := w.cfg.RabbitMQPrefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(
		mq.QueueTasks,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	concurrency := w.cfg.DeleteWorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delete worker: delivery channel closed")
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				w.handle(ctx, client, d)
			}(delivery)
		}
	}
}

func (w *DeleteWorker) handle(ctx context.Context, client *mq.Client, delivery amqp.Delivery) {
	var msg task.DeleteMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Printf("delete worker: invalid message: %v", err)
		_ = delivery.Ack(false)
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		_ = delivery.Nack(false, true)
		return
	}

	if err := task.ProcessDeleteTask(ctx, w.deleter, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = delivery.Nack(false, true)
			return
		}
		if shouldRetry(err) {
			if err := w.scheduleRetry(ctx, client, msg, err); err != nil {
				log.Printf("delete worker: retry schedule failed: %v", err)
				_ = delivery.Nack(false, true)
				return
			}
		} else {
			markFailed(ctx, client, msg, err)
		}
	}

	_ = delivery.Ack(false)
}

// shouldRetry retries infrastructure faults only.
func shouldRetry(err error) bool {
	if errors.Is(err, task.ErrEmptyKey) || errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	return true
}

func (w *DeleteWorker) scheduleRetry(ctx context.Context, client *mq.Client, msg task.DeleteMessage, procErr error) error {
	maxRetry := w.cfg.DeleteRetryMax
	if maxRetry < 0 {
		maxRetry = 0
	}
	nextAttempt := msg.Attempt + 1
	if maxRetry == 0 || nextAttempt > maxRetry {
		markFailed(ctx, client, msg, procErr)
		return nil
	}

	delay := pickRetryDelay(nextAttempt, w.cfg.DeleteRetryDelays)
	log.Printf("delete worker: %s attempt %d failed, retry in %s: %v", msg.Key, nextAttempt, delay, procErr)

	msg.Attempt = nextAttempt
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.PublishRetry(ctx, body, delay)
}

func markFailed(ctx context.Context, client *mq.Client, msg task.DeleteMessage, procErr error) {
	dlq := dlqMessage{
		Key:      msg.Key,
		Reason:   msg.Reason,
		Attempt:  msg.Attempt,
		Error:    procErr.Error(),
		FailedAt: time.Now(),
	}
	body, err := json.Marshal(dlq)
	if err != nil {
		log.Printf("delete worker: encode dlq message: %v", err)
		return
	}
	if err := client.PublishDLQ(ctx, body); err != nil {
		log.Printf("delete worker: dlq publish failed: %v", err)
	}
}

func pickRetryDelay(attempt int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	index := attempt - 1
	if index < 0 {
		index = 0
	}
	if index >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[index]
}
