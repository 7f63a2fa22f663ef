// Package pasetotoken issues and verifies the v4 PASETO session tokens the
// web client sends as the session cookie or a Bearer header.
package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

type Config struct {
	Mode      Mode
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

type Manager struct {
	cfg  Config
	keys Keys
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, ErrConfig{Msg: "cfg.Mode must match keys.Mode"}
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, ErrConfig{Msg: "issuer and audience are required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	return &Manager{cfg: cfg, keys: keys}, nil
}

// Issue mints a session token for the user and role.
func (m *Manager) Issue(userID uuid.UUID, role string) (string, error) {
	now := time.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(randHex(16))
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(m.cfg.AccessTTL))
	tok.SetSubject(userID.String())
	tok.SetString("role", role)

	switch {
	case m.cfg.Mode == ModeLocal && m.keys.Symmetric != nil:
		return tok.V4Encrypt(*m.keys.Symmetric, nil), nil
	case m.cfg.Mode == ModePublic && m.keys.Secret != nil:
		return tok.V4Sign(*m.keys.Secret, nil), nil
	default:
		return "", ErrConfig{Msg: "no signing key for mode " + string(m.cfg.Mode)}
	}
}

func (m *Manager) Verify(token string) (*Claims, error) {
	// Rules are built per call so ValidAt uses the current time.
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.cfg.Issuer))
	p.AddRule(paseto.ForAudience(m.cfg.Audience))
	p.AddRule(paseto.NotExpired())
	p.AddRule(paseto.ValidAt(time.Now()))

	var (
		tok *paseto.Token
		err error
	)
	switch {
	case m.cfg.Mode == ModeLocal && m.keys.Symmetric != nil:
		tok, err = p.ParseV4Local(*m.keys.Symmetric, token, nil)
	case m.cfg.Mode == ModePublic && m.keys.Public != nil:
		tok, err = p.ParseV4Public(*m.keys.Public, token, nil)
	default:
		return nil, ErrConfig{Msg: "no verification key for mode " + string(m.cfg.Mode)}
	}
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}

	claims, err := extractClaims(tok)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	claims.Issuer, claims.Audience = m.cfg.Issuer, m.cfg.Audience
	return claims, nil
}

func extractClaims(tok *paseto.Token) (*Claims, error) {
	sub, err := tok.GetSubject()
	if err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(sub)
	if err != nil {
		return nil, err
	}
	jti, err := tok.GetJti()
	if err != nil {
		return nil, err
	}
	iat, err := tok.GetIssuedAt()
	if err != nil {
		return nil, err
	}
	exp, err := tok.GetExpiration()
	if err != nil {
		return nil, err
	}
	role, err := tok.GetString("role")
	if err != nil {
		return nil, err
	}
	return &Claims{UserID: uid, Role: role, TokenID: jti, IssuedAt: iat, ExpiresAt: exp}, nil
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
