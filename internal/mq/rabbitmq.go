package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeTasks = "lifecycle.delete.exchange"
	ExchangeRetry = "lifecycle.delete.retry.exchange"
	ExchangeDLQ   = "lifecycle.delete.dlq.exchange"

	QueueTasks = "lifecycle.delete.queue"
	QueueRetry = "lifecycle.delete.retry.queue"
	QueueDLQ   = "lifecycle.delete.dlq.queue"

	RoutingTask  = "delete"
	RoutingRetry = "delete.retry"
	RoutingDLQ   = "delete.dlq"
)

type Client struct {
	Conn      *amqp.Connection //tcp
	Channel   *amqp.Channel    // AMQP
	publishMu sync.Mutex
}

// Dial opens a connection and one channel.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (c *Client) closed() bool {
	return c.Conn.IsClosed() || c.Channel.IsClosed()
}

type exchangeSpec struct {
	exchange, queue, routing string
	args                     amqp.Table
}

// DeclareTopology declares the task, retry and dead-letter exchanges. The
// retry queue dead-letters expired messages back onto the task exchange.
func (c *Client) DeclareTopology() error {
	specs := []exchangeSpec{
		{exchange: ExchangeTasks, queue: QueueTasks, routing: RoutingTask},
		{exchange: ExchangeRetry, queue: QueueRetry, routing: RoutingRetry, args: amqp.Table{
			"x-dead-letter-exchange":    ExchangeTasks,
			"x-dead-letter-routing-key": RoutingTask,
		}},
		{exchange: ExchangeDLQ, queue: QueueDLQ, routing: RoutingDLQ},
	}
	for _, s := range specs {
		if err := c.Channel.ExchangeDeclare(s.exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", s.exchange, err)
		}
		if _, err := c.Channel.QueueDeclare(s.queue, true, false, false, false, s.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", s.queue, err)
		}
		if err := c.Channel.QueueBind(s.queue, s.routing, s.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", s.queue, err)
		}
	}
	return nil
}

func (c *Client) PublishTask(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeTasks, RoutingTask, body, "")
}

func (c *Client) PublishRetry(ctx context.Context, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	expiration := fmt.Sprintf("%d", delay.Milliseconds())
	return c.publish(ctx, ExchangeRetry, RoutingRetry, body, expiration)
}

func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeDLQ, RoutingDLQ, body, "")
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte, expiration string) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	if expiration != "" {
		msg.Expiration = expiration
	}
	return c.Channel.PublishWithContext(
		ctx,
		exchange,
		key,
		false,
		false,
		msg,
	)
}
