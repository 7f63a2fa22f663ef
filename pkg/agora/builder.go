// Package agora issues Agora AccessToken2 credentials for RTC and RTM.
package agora

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder2"
	rtmtokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtmtokenbuilder2"
)

var (
	ErrMissingCredentials = errors.New("agora app id and certificate are required")
	ErrInvalidCredentials = errors.New("agora app id and certificate must be 32 hex characters")
	ErrEmptyChannel       = errors.New("channel name is required")
	ErrEmptyUser          = errors.New("user id is required")
	ErrInvalidUserID      = errors.New("cannot derive uid from empty user id")
)

// Role of a participant inside an RTC channel.
type Role string

const (
	RolePatient      Role = "patient"
	RolePsychologist Role = "psychologist"
	RoleSubscriber   Role = "subscriber"
)

// ParseRole maps free-form input to a Role; empty input is a patient.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePsychologist:
		return RolePsychologist
	case RoleSubscriber, "audience":
		return RoleSubscriber
	default:
		return RolePatient
	}
}

// rtcRole: patients and psychologists publish, subscribers only join.
func (r Role) rtcRole() rtctokenbuilder.Role {
	if r == RoleSubscriber {
		return rtctokenbuilder.RoleSubscriber
	}
	return rtctokenbuilder.RolePublisher
}

// Provider is what the room workflow needs from the video provider.
type Provider interface {
	RTCToken(ctx context.Context, channel string, uid uint32, role Role) (string, error)
	RTMToken(ctx context.Context, userID string) (string, error)
	TTL() time.Duration
}

type Builder struct {
	appID   string
	appCert string
	ttl     time.Duration
}

func NewBuilder(appID, appCertificate string, ttl time.Duration) (*Builder, error) {
	if appID == "" || appCertificate == "" {
		return nil, ErrMissingCredentials
	}
	// the token builder silently returns "" for anything else
	if !isHex32(appID) || !isHex32(appCertificate) {
		return nil, ErrInvalidCredentials
	}
	if ttl <= 0 {
		ttl = 3000 * time.Second
	}
	return &Builder{appID: appID, appCert: appCertificate, ttl: ttl}, nil
}

func (b *Builder) TTL() time.Duration { return b.ttl }

func (b *Builder) expire() uint32 { return uint32(b.ttl / time.Second) }

// RTCToken issues a channel token; the token and its privileges share the TTL.
func (b *Builder) RTCToken(_ context.Context, channel string, uid uint32, role Role) (string, error) {
	if channel == "" {
		return "", ErrEmptyChannel
	}
	tok, err := rtctokenbuilder.BuildTokenWithUid(b.appID, b.appCert, channel, uid, role.rtcRole(), b.expire(), b.expire())
	return checked("rtc", tok, err)
}

// RTMToken issues a signalling login token for userID.
func (b *Builder) RTMToken(_ context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUser
	}
	tok, err := rtmtokenbuilder.BuildToken(b.appID, b.appCert, userID, b.expire())
	return checked("rtm", tok, err)
}

func checked(kind, tok string, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("build %s token: %w", kind, err)
	}
	if tok == "" {
		return "", fmt.Errorf("build %s token: %w", kind, ErrInvalidCredentials)
	}
	return tok, nil
}

func isHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// DeriveUID maps a user id to a stable, positive 31-bit RTC uid.
func DeriveUID(userID string) (uint32, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrInvalidUserID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(userID)))
	uid := h.Sum32() & 0x7fffffff
	if uid == 0 {
		uid = 1
	}
	return uid, nil
}
