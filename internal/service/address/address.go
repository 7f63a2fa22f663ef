// Package address resolves postal codes, caching hits in redis.
package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/estacaoterapia/estacao_backend/pkg/cep"
)

const keyPrefix = "cep:"

// Resolver is the upstream lookup, normally *cep.Client.
type Resolver interface {
	Lookup(ctx context.Context, raw string) (*cep.Address, error)
}

// Cache stores serialized addresses. A miss returns (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type redisCache struct {
	rdb goredis.UniversalClient
}

func NewRedisCache(rdb goredis.UniversalClient) Cache {
	return redisCache{rdb: rdb}
}

func (c redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return b, err
}

func (c redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

type Service interface {
	Lookup(ctx context.Context, raw string) (*cep.Address, error)
}

type addressService struct {
	resolver Resolver
	cache    Cache
	ttl      time.Duration
	log      *slog.Logger
}

// New builds the service; cache may be nil.
func New(resolver Resolver, cache Cache, ttl time.Duration, log *slog.Logger) Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &addressService{resolver: resolver, cache: cache, ttl: ttl, log: log.With("component", "address")}
}

func (s *addressService) Lookup(ctx context.Context, raw string) (*cep.Address, error) {
	code, err := cep.Normalize(raw)
	if err != nil {
		return nil, ErrInvalidCEP
	}

	if a := s.cached(ctx, code); a != nil {
		return a, nil
	}

	a, err := s.resolver.Lookup(ctx, code)
	switch {
	case errors.Is(err, cep.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, cep.ErrInvalidCEP):
		return nil, ErrInvalidCEP
	case err != nil:
		return nil, fmt.Errorf("lookup cep: %w", err)
	}

	if s.cache != nil {
		if b, err := json.Marshal(a); err == nil {
			if err := s.cache.Set(ctx, keyPrefix+code, b, s.ttl); err != nil {
				s.log.Warn("cep cache write failed", "cep", code, "error", err)
			}
		}
	}
	return a, nil
}

func (s *addressService) cached(ctx context.Context, code string) *cep.Address {
	if s.cache == nil {
		return nil
	}
	b, err := s.cache.Get(ctx, keyPrefix+code)
	if err != nil {
		s.log.Warn("cep cache read failed", "cep", code, "error", err)
		return nil
	}
	if b == nil {
		return nil
	}
	var a cep.Address
	if err := json.Unmarshal(b, &a); err != nil {
		return nil
	}
	return &a
}
