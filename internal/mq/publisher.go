package mq

import (
	"Zyncrate/internal/task"
	"context"
	"encoding/json"
	"sync"
	"time"
)

const publishTimeout = 3 * time.Second

// Publisher sends deletion tasks, redialing when the connection drops.
type Publisher struct {
	url    string
	mu     sync.Mutex
	client *Client
}

// NewPublisher creates a Publisher; the first publish dials.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

func (p *Publisher) get() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		if !p.client.closed() {
			return p.client, nil
		}
		p.client.Close()
		p.client = nil
	}
	client, err := Dial(p.url)
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	p.client = client
	return p.client, nil
}

// DispatchDelete enqueues a deletion for the worker.
func (p *Publisher) DispatchDelete(ctx context.Context, key, reason string) error {
	body, err := json.Marshal(task.DeleteMessage{Key: key, Reason: reason})
	if err != nil {
		return err
	}
	client, err := p.get()
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return client.PublishTask(pubCtx, body)
}

// Close drops the connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client.Close()
	p.client = nil
}
