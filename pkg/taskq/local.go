package taskq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Local runs tasks on a bounded goroutine pool inside the process.
type Local struct {
	mu          sync.Mutex
	handlers    registry
	pool        *pool.Pool
	closed      bool
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

func NewLocal(workers, maxAttempts int, log *slog.Logger) *Local {
	if workers <= 0 {
		workers = 8
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Local{
		handlers:    registry{},
		pool:        pool.New().WithMaxGoroutines(workers),
		maxAttempts: maxAttempts,
		retryDelay:  defaultRetryDelay,
		log:         log.With("component", "taskq.local"),
	}
}

func (q *Local) Handle(kind string, h Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handlers.add(kind, h)
}

func (q *Local) Start(context.Context) error { return nil }

func (q *Local) Enqueue(_ context.Context, kind string, payload any) error {
	env, err := newEnvelope(kind, payload)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	h, ok := q.handlers[kind]
	if !ok {
		return ErrUnknownKind
	}

	q.pool.Go(func() {
		for {
			err := run(context.Background(), h, env)
			if err == nil {
				return
			}
			logFailure(q.log, env, q.maxAttempts, err)
			if env.Attempt >= q.maxAttempts {
				return
			}
			env.Attempt++
			time.Sleep(q.retryDelay)
		}
	})
	return nil
}

// Stop refuses new tasks and waits for the queued ones.
func (q *Local) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.pool.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
