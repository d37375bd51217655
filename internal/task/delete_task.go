package task

import (
	"context"
	"errors"
	"log"
)

// DeleteMessage is the payload sent to the worker.
type DeleteMessage struct {
	Key     string `json:"key"`
	Reason  string `json:"reason"`
	Attempt int    `json:"attempt"`
}

// Deleter runs the deletion transition for one file.
type Deleter interface {
	Delete(ctx context.Context, key, reason string) (bool, error)
}

var ErrEmptyKey = errors.New("delete task: empty key")

// ProcessDeleteTask runs one deletion. A key that is already gone is success.
func ProcessDeleteTask(ctx context.Context, deleter Deleter, msg DeleteMessage) error {
	if msg.Key == "" {
		return ErrEmptyKey
	}
	reason := msg.Reason
	if reason == "" {
		reason = "expired"
	}
	deleted, err := deleter.Delete(ctx, msg.Key, reason)
	if err != nil {
		return err
	}
	if !deleted {
		log.Printf("delete task: %s already deleted or in progress", msg.Key)
	}
	return nil
}
