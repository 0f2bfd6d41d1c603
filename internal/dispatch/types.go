package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a message type on the queue.
type Kind string

const (
	KindOccurrence   Kind = "occurrence"
	KindNotification Kind = "notification"
	KindSummary      Kind = "summary"
	KindWebhook      Kind = "webhook"
)

// Message is the queue envelope. Body is the JSON-encoded kind-specific
// payload.
type Message struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Body     json.RawMessage `json:"body"`
	Enqueued time.Time       `json:"enqueued"`
}

// NewMessage wraps a payload in an envelope.
func NewMessage(kind Kind, body any) (Message, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s message: %w", kind, err)
	}
	return Message{
		ID:       uuid.NewString(),
		Kind:     kind,
		Body:     raw,
		Enqueued: time.Now().UTC(),
	}, nil
}

// HandlerFunc processes one message. Returning nil acknowledges it.
type HandlerFunc func(ctx context.Context, msg Message) error

// FailureFunc observes a failed message. It must not panic; the service
// guards it anyway.
type FailureFunc func(ctx context.Context, msg Message, err error)

// Typed adapts a payload-typed handler to a HandlerFunc, decoding the
// envelope body first.
func Typed[T any](fn func(ctx context.Context, body T) error) HandlerFunc {
	return func(ctx context.Context, msg Message) error {
		var body T
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("decode %s message: %w", msg.Kind, err)
		}
		return fn(ctx, body)
	}
}

var (
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)

// Queue is the transport contract. Dequeue blocks until a message is
// available or ctx is cancelled.
type Queue interface {
	Enqueue(ctx context.Context, m Message) error
	Dequeue(ctx context.Context) (Message, error)
	Close() error
}

// Config controls the worker pool.
type Config struct {
	Workers int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}
