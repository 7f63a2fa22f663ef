package pasetotoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := New(Config{Mode: ModeLocal, Issuer: "estacao", Audience: "web", AccessTTL: ttl}, NewLocalKeys())
	require.NoError(t, err)
	return m
}

func TestIssueVerify(t *testing.T) {
	m := newManager(t, time.Hour)
	uid := uuid.New()

	tok, err := m.Issue(uid, "Psychologist")
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	assert.Equal(t, "Psychologist", claims.Role)
	assert.False(t, claims.IsExpired())
}

func TestVerifyRejects(t *testing.T) {
	m := newManager(t, time.Hour)
	other := newManager(t, time.Hour)

	tok, err := other.Issue(uuid.New(), "Patient")
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.ErrorAs(t, err, &ErrInvalidToken{})

	_, err = m.Verify("v4.local.garbage")
	assert.ErrorAs(t, err, &ErrInvalidToken{})
}

func TestLoadKeys(t *testing.T) {
	_, err := LoadKeys(KeyStrings{Mode: ModeLocal})
	assert.ErrorAs(t, err, &ErrConfig{})

	_, err = LoadKeys(KeyStrings{Mode: "jwt"})
	assert.ErrorAs(t, err, &ErrConfig{})

	k := NewLocalKeys()
	loaded, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: k.Symmetric.ExportHex()})
	require.NoError(t, err)
	assert.Equal(t, k.Symmetric.ExportHex(), loaded.Symmetric.ExportHex())
}
