package taskq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const queueGroup = "estacao-workers"

// Nats publishes tasks on "<prefix>.task.<kind>" and consumes them through a
// queue group, so each task is handled by one process.
type Nats struct {
	nc          *nats.Conn
	prefix      string
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	handlers registry
	subs     []*nats.Subscription
	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewNats(nc *nats.Conn, prefix string, maxAttempts int, log *slog.Logger) *Nats {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Nats{
		nc:          nc,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		retryDelay:  defaultRetryDelay,
		log:         log.With("component", "taskq.nats"),
		handlers:    registry{},
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (q *Nats) subject(kind string) string {
	return fmt.Sprintf("%s.task.%s", q.prefix, kind)
}

func (q *Nats) Handle(kind string, h Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handlers.add(kind, h)
}

func (q *Nats) Enqueue(_ context.Context, kind string, payload any) error {
	env, err := newEnvelope(kind, payload)
	if err != nil {
		return err
	}
	return q.publish(env)
}

func (q *Nats) publish(env *envelope) error {
	if q.nc.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal task envelope: %w", err)
	}
	if err := q.nc.Publish(q.subject(env.Kind), data); err != nil {
		return fmt.Errorf("publish task %s: %w", env.Kind, err)
	}
	return nil
}

// Start subscribes every registered kind.
func (q *Nats) Start(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for kind, h := range q.handlers {
		h := h
		sub, err := q.nc.QueueSubscribe(q.subject(kind), queueGroup, func(msg *nats.Msg) {
			q.inflight.Add(1)
			defer q.inflight.Done()
			q.dispatch(h, msg.Data)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
		q.subs = append(q.subs, sub)
	}
	q.log.Info("task consumers started", "kinds", len(q.subs))
	return nil
}

func (q *Nats) dispatch(h Handler, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		q.log.Warn("dropping malformed task", "error", err)
		return
	}

	err := run(q.ctx, h, &env)
	if err == nil {
		return
	}
	logFailure(q.log, &env, q.maxAttempts, err)
	if env.Attempt >= q.maxAttempts {
		return
	}

	env.Attempt++
	time.AfterFunc(q.retryDelay, func() {
		if err := q.publish(&env); err != nil {
			q.log.Error("task retry not published", "kind", env.Kind, "error", err)
		}
	})
}

// Stop unsubscribes and waits for running handlers. The connection itself is
// drained by its owner.
func (q *Nats) Stop(ctx context.Context) error {
	q.mu.Lock()
	for _, sub := range q.subs {
		_ = sub.Unsubscribe()
	}
	q.subs = nil
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(done)
	}()
	defer q.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
