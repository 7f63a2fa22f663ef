package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pasetotoken "github.com/estacaoterapia/estacao_backend/pkg/paseto"
	"github.com/estacaoterapia/estacao_backend/pkg/reqctx"
)

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, id string) (bool, error) {
	if id == "boom" {
		return false, errors.New("redis down")
	}
	return r[id], nil
}

type stubVerifier struct {
	claims *pasetotoken.Claims
	err    error
}

func (s stubVerifier) Verify(string) (*pasetotoken.Claims, error) { return s.claims, s.err }

func TestAuthRequired(t *testing.T) {
	uid := uuid.New()
	valid := func(tid string) *pasetotoken.Claims {
		return &pasetotoken.Claims{UserID: uid, Role: "Patient", TokenID: tid, ExpiresAt: time.Now().Add(time.Hour)}
	}

	tests := []struct {
		name   string
		header string
		cookie string
		ver    stubVerifier
		status int
	}{
		{name: "no token", ver: stubVerifier{claims: valid("a")}, status: http.StatusUnauthorized},
		{name: "bearer", header: "Bearer tok", ver: stubVerifier{claims: valid("a")}, status: http.StatusOK},
		{name: "cookie", cookie: "tok", ver: stubVerifier{claims: valid("a")}, status: http.StatusOK},
		{name: "basic scheme ignored", header: "Basic tok", ver: stubVerifier{claims: valid("a")}, status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer tok", ver: stubVerifier{err: errors.New("bad")}, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer tok", ver: stubVerifier{claims: &pasetotoken.Claims{UserID: uid, ExpiresAt: time.Now().Add(-time.Minute)}}, status: http.StatusUnauthorized},
		{name: "revoked", header: "Bearer tok", ver: stubVerifier{claims: valid("gone")}, status: http.StatusUnauthorized},
		{name: "revocation store down", header: "Bearer tok", ver: stubVerifier{claims: valid("boom")}, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", AuthRequired(tt.ver, "token", revokedSet{"gone": true}), func(c fiber.Ctx) error {
				id, ok := reqctx.UserIDFromContext(c.Context())
				if !ok {
					return fiber.ErrTeapot
				}
				return c.SendString(id.String())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRequestIDEchoesIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequestID(), func(c fiber.Ctx) error {
		return c.SendString(reqctx.RequestIDFromContext(c.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(HeaderRequestID))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))
}
