package pasetotoken

import (
	"strings"

	paseto "aidanwoods.dev/go-paseto"
)

type Mode string

const (
	ModeLocal  Mode = "local"  // v4.local, encrypted
	ModePublic Mode = "public" // v4.public, signed
)

type Keys struct {
	Mode Mode

	Symmetric *paseto.V4SymmetricKey
	Secret    *paseto.V4AsymmetricSecretKey
	Public    *paseto.V4AsymmetricPublicKey
}

type KeyStrings struct {
	Mode         Mode
	SymmetricHex string
	SecretHex    string
	PublicHex    string
}

// LoadKeys parses hex keys. Public mode accepts a secret key (the public half
// is derived), a public key alone for verify-only processes, or both.
func LoadKeys(in KeyStrings) (Keys, error) {
	switch in.Mode {
	case ModeLocal:
		raw := strings.TrimSpace(in.SymmetricHex)
		if raw == "" {
			return Keys{}, ErrConfig{Msg: "local mode requires local_key_hex"}
		}
		k, err := paseto.V4SymmetricKeyFromHex(raw)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "invalid symmetric key hex: " + err.Error()}
		}
		return Keys{Mode: ModeLocal, Symmetric: &k}, nil

	case ModePublic:
		out := Keys{Mode: ModePublic}
		if raw := strings.TrimSpace(in.SecretHex); raw != "" {
			sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(raw)
			if err != nil {
				return Keys{}, ErrConfig{Msg: "invalid secret key hex: " + err.Error()}
			}
			pk := sk.Public()
			out.Secret, out.Public = &sk, &pk
		}
		if raw := strings.TrimSpace(in.PublicHex); raw != "" {
			pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(raw)
			if err != nil {
				return Keys{}, ErrConfig{Msg: "invalid public key hex: " + err.Error()}
			}
			out.Public = &pk
		}
		if out.Public == nil {
			return Keys{}, ErrConfig{Msg: "public mode requires secret_key_hex and/or public_key_hex"}
		}
		return out, nil

	default:
		return Keys{}, ErrConfig{Msg: "unknown mode (use local|public)"}
	}
}

func NewLocalKeys() Keys {
	k := paseto.NewV4SymmetricKey()
	return Keys{Mode: ModeLocal, Symmetric: &k}
}
