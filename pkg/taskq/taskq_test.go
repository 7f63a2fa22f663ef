package taskq

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repassePayload struct {
	ConsultaID string `json:"consultaId"`
}

func TestLocalRunsHandler(t *testing.T) {
	q := NewLocal(2, 1, nil)

	var got atomic.Value
	require.NoError(t, q.Handle("repasse.process", func(_ context.Context, payload []byte) error {
		var p repassePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		got.Store(p.ConsultaID)
		return nil
	}))

	require.NoError(t, q.Enqueue(context.Background(), "repasse.process", repassePayload{ConsultaID: "c-1"}))
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, "c-1", got.Load())
}

func TestLocalRetriesUntilBudget(t *testing.T) {
	q := NewLocal(1, 3, nil)
	q.retryDelay = time.Millisecond

	var calls atomic.Int32
	require.NoError(t, q.Handle("flaky", func(context.Context, []byte) error {
		calls.Add(1)
		return errors.New("boom")
	}))

	require.NoError(t, q.Enqueue(context.Background(), "flaky", struct{}{}))
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestLocalRecoversPanics(t *testing.T) {
	q := NewLocal(1, 2, nil)
	q.retryDelay = time.Millisecond

	var calls atomic.Int32
	require.NoError(t, q.Handle("panicky", func(context.Context, []byte) error {
		if calls.Add(1) == 1 {
			panic("first attempt")
		}
		return nil
	}))

	require.NoError(t, q.Enqueue(context.Background(), "panicky", nil))
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLocalRejections(t *testing.T) {
	q := NewLocal(1, 1, nil)
	noop := func(context.Context, []byte) error { return nil }

	require.NoError(t, q.Handle("a", noop))
	assert.ErrorIs(t, q.Handle("a", noop), ErrDuplicateKind)
	assert.ErrorIs(t, q.Enqueue(context.Background(), "missing", nil), ErrUnknownKind)

	require.NoError(t, q.Stop(context.Background()))
	assert.ErrorIs(t, q.Enqueue(context.Background(), "a", nil), ErrClosed)
}

func TestNatsSubjectAndEnvelope(t *testing.T) {
	q := NewNats(nil, "estacao", 3, nil)
	assert.Equal(t, "estacao.task.repasse.process", q.subject("repasse.process"))

	env, err := newEnvelope("repasse.process", repassePayload{ConsultaID: "c-9"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.Attempt)
	assert.JSONEq(t, `{"consultaId":"c-9"}`, string(env.Payload))
}
