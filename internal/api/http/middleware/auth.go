package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	pasetotoken "github.com/estacaoterapia/estacao_backend/pkg/paseto"
	"github.com/estacaoterapia/estacao_backend/pkg/reqctx"
)

// TokenVerifier is satisfied by *pasetotoken.Manager.
type TokenVerifier interface {
	Verify(token string) (*pasetotoken.Claims, error)
}

// Revocations reports sessions ended before their token expired (logout,
// password change).
type Revocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedSessionPrefix = "session:revoked:"

type redisRevocations struct {
	rdb redis.UniversalClient
}

func NewRedisRevocations(rdb redis.UniversalClient) Revocations {
	return &redisRevocations{rdb: rdb}
}

func (r *redisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedSessionPrefix+tokenID).Result()
	return n > 0, err
}

// AuthRequired accepts a session token from the Authorization header or the
// session cookie. On success the claims are stored in
// c.Locals(pasetotoken.CtxKeyClaims) and on the request context.
// revoked may be nil.
func AuthRequired(mgr TokenVerifier, cookieName string, revoked Revocations) fiber.Handler {
	return func(c fiber.Ctx) error {
		tok := pasetotoken.TokenFromRequest(c, cookieName)
		if tok == "" {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.Verify(tok)
		if err != nil || claims.IsExpired() {
			return fiber.ErrUnauthorized
		}

		if revoked != nil && claims.TokenID != "" {
			gone, err := revoked.IsRevoked(c.Context(), claims.TokenID)
			if err != nil || gone {
				return fiber.ErrUnauthorized
			}
		}

		c.Locals(pasetotoken.CtxKeyClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}
