package pasetotoken

import (
	"time"

	"github.com/google/uuid"
)

// Claims is the session token payload.
type Claims struct {
	UserID uuid.UUID
	Role   string

	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

func (c *Claims) GetUserID() uuid.UUID { return c.UserID }

func (c *Claims) GetRole() string { return c.Role }

func (c *Claims) IsExpired() bool { return time.Now().After(c.ExpiresAt) }
