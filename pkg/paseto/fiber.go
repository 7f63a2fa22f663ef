package pasetotoken

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/config"
)

const CtxKeyClaims = "auth.claims"

// TokenFromRequest prefers the Authorization Bearer header and falls back to
// the session cookie.
func TokenFromRequest(c fiber.Ctx, cookieName string) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return c.Cookies(cookieName)
}

func ClaimsFromFiber(c fiber.Ctx) (*Claims, bool) {
	cl, ok := c.Locals(CtxKeyClaims).(*Claims)
	return cl, ok && cl != nil
}

func NewPasetoManager(cfg *config.Config) (*Manager, error) {
	p := cfg.Authentication.Paseto

	keys, err := LoadKeys(KeyStrings{
		Mode:         Mode(p.Mode),
		SymmetricHex: p.LocalKeyHex,
		SecretHex:    p.SecretKeyHex,
		PublicHex:    p.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}

	return New(Config{
		Mode:      Mode(p.Mode),
		Issuer:    p.Issuer,
		Audience:  p.Audience,
		AccessTTL: time.Duration(p.AccessTTLMinutes) * time.Minute,
	}, keys)
}
