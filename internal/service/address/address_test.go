package address

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estacaoterapia/estacao_backend/pkg/cep"
)

type fakeResolver struct {
	calls int
	addr  *cep.Address
	err   error
}

func (f *fakeResolver) Lookup(_ context.Context, raw string) (*cep.Address, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	a := *f.addr
	a.CEP = raw
	return &a, nil
}

type mapCache struct {
	data map[string][]byte
	ttl  time.Duration
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) { return c.data[key], nil }

func (c *mapCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.data[key], c.ttl = val, ttl
	return nil
}

func TestLookupCachesHits(t *testing.T) {
	res := &fakeResolver{addr: &cep.Address{Logradouro: "Praça da Sé", Localidade: "São Paulo", UF: "SP"}}
	cache := &mapCache{data: map[string][]byte{}}
	svc := New(res, cache, 0, nil)

	a, err := svc.Lookup(context.Background(), "01001-000")
	require.NoError(t, err)
	assert.Equal(t, "01001000", a.CEP)
	assert.Equal(t, 24*time.Hour, cache.ttl)
	assert.Contains(t, cache.data, "cep:01001000")

	again, err := svc.Lookup(context.Background(), "01001000")
	require.NoError(t, err)
	assert.Equal(t, a, again)
	assert.Equal(t, 1, res.calls)
}

func TestLookupErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
		want error
	}{
		{name: "short", raw: "123", want: ErrInvalidCEP},
		{name: "not found", raw: "99999999", err: cep.ErrNotFound, want: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&fakeResolver{err: tt.err}, nil, time.Hour, nil)
			_, err := svc.Lookup(context.Background(), tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	svc := New(&fakeResolver{err: errors.New("boom")}, nil, time.Hour, nil)
	_, err := svc.Lookup(context.Background(), "01001000")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
