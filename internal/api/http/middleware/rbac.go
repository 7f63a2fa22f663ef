package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
	pasetotoken "github.com/estacaoterapia/estacao_backend/pkg/paseto"
)

// RequirePermission checks the caller's role (or a per-user grant) against
// the casbin policy. It must run after AuthRequired.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := pasetotoken.ClaimsFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		sub := authorize.Subject{UserID: claims.UserID.String(), Role: authorize.Role(claims.Role)}
		if err := auth.MustEnforce(c.Context(), sub, resource, action); err != nil {
			if errors.Is(err, authorize.ErrForbidden) {
				return fiber.ErrForbidden
			}
			return err
		}

		return c.Next()
	}
}
