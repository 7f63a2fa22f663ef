package reqctx

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type testClaims struct {
	id      uuid.UUID
	role    string
	expired bool
}

func (c testClaims) GetUserID() uuid.UUID { return c.id }
func (c testClaims) GetRole() string      { return c.role }
func (c testClaims) IsExpired() bool      { return c.expired }

func TestClaims(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsAuthenticated(ctx))
	assert.Empty(t, RoleFromContext(ctx))

	id := uuid.New()
	ctx = WithClaims(ctx, testClaims{id: id, role: "Admin"})
	assert.True(t, IsAuthenticated(ctx))
	got, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, "Admin", RoleFromContext(ctx))

	assert.False(t, IsAuthenticated(WithClaims(context.Background(), testClaims{expired: true})))
}

func TestLogAttrs(t *testing.T) {
	ctx := WithRequestMeta(context.Background(), &RequestMeta{RequestID: "req-1", RequestedAt: time.Now()})
	assert.Equal(t, []any{"request_id", "req-1"}, LogAttrs(ctx))
	assert.Empty(t, LogAttrs(context.Background()))
}
