// Package taskq runs fire-and-forget work outside the request path, over
// NATS when available or an in-process goroutine pool otherwise.
package taskq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrClosed         = errors.New("task queue is closed")
	ErrUnknownKind    = errors.New("no handler registered for task kind")
	ErrDuplicateKind  = errors.New("handler already registered for task kind")
	defaultRetryDelay = 2 * time.Second
)

// Handler processes one task payload. A returned error schedules a retry
// until the attempt budget is spent.
type Handler func(ctx context.Context, payload []byte) error

type Queue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
	Handle(kind string, h Handler) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type envelope struct {
	Kind     string          `json:"kind"`
	Attempt  int             `json:"attempt"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at"`
}

func newEnvelope(kind string, payload any) (*envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &envelope{Kind: kind, Attempt: 1, Payload: raw, QueuedAt: time.Now().UTC()}, nil
}

type registry map[string]Handler

func (r registry) add(kind string, h Handler) error {
	if _, ok := r[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	r[kind] = h
	return nil
}

// run executes one attempt, recovering panics into errors.
func run(ctx context.Context, h Handler, env *envelope) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("task %s panicked: %v", env.Kind, v)
		}
	}()
	return h(ctx, env.Payload)
}

func logFailure(log *slog.Logger, env *envelope, maxAttempts int, err error) {
	attrs := []any{"kind", env.Kind, "attempt", env.Attempt, "max_attempts", maxAttempts, "error", err}
	if env.Attempt >= maxAttempts {
		log.Error("task failed permanently", attrs...)
		return
	}
	log.Warn("task failed, will retry", attrs...)
}
