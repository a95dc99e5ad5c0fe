package core

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionEnvelope bridges a federated sign-in callback to the cookie-backed
// session. It is minted by the federation exchange, stored under a one-time
// handoff ID, and consumed exactly once by the request gate. ExpiresAt is the
// access credential's expiry instant, not the envelope's own lifetime.
type SessionEnvelope struct {
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
	RenewalFailed bool
}

type envelopeClaims struct {
	jwt.RegisteredClaims
	AccessToken     string `json:"at"`
	RefreshToken    string `json:"rt,omitempty"`
	AccessExpiresAt int64  `json:"aexp,omitempty"`
	RenewalFailed   bool   `json:"rf,omitempty"`
}

// SignEnvelope serializes and signs an envelope with HS256. The envelope
// itself expires after HandoffTTL regardless of the credentials it carries.
func SignEnvelope(env SessionEnvelope, secret []byte) (string, error) {
	now := time.Now()
	claims := &envelopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(HandoffTTL)),
		},
		AccessToken:   env.AccessToken,
		RefreshToken:  env.RefreshToken,
		RenewalFailed: env.RenewalFailed,
	}
	if !env.ExpiresAt.IsZero() {
		claims.AccessExpiresAt = env.ExpiresAt.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseEnvelope verifies and deserializes a signed envelope. A tampered or
// expired envelope yields ErrInvalidEnvelope.
func ParseEnvelope(signed string, secret []byte) (SessionEnvelope, error) {
	claims := &envelopeClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidEnvelope
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return SessionEnvelope{}, ErrInvalidEnvelope
	}

	env := SessionEnvelope{
		AccessToken:   claims.AccessToken,
		RefreshToken:  claims.RefreshToken,
		RenewalFailed: claims.RenewalFailed,
	}
	if claims.AccessExpiresAt != 0 {
		env.ExpiresAt = time.Unix(claims.AccessExpiresAt, 0)
	}
	return env, nil
}
