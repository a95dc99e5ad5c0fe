package core

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names shared between the credential store and the issuer boundary.
const (
	CookieAccess   = "access_token"
	CookieRefresh  = "refresh_token"
	CookieRealtime = "realtime_authorization"
	CookieHandoff  = "session_handoff"
)

const (
	// AccessTTL is the lifetime of the access credential cookie
	AccessTTL = 5 * time.Minute

	// RefreshTTL is the lifetime of the refresh credential cookie
	RefreshTTL = 30 * 24 * time.Hour

	// RealtimeTTL is the lifetime of the realtime authorization cookie
	RealtimeTTL = time.Hour

	// HandoffTTL bounds how long a federated session envelope may wait
	// between the sign-in callback and the request that consumes it
	HandoffTTL = 5 * time.Minute
)

// TokenPair is the credential pair minted by the issuer. RefreshToken is
// empty when the issuer chose not to rotate.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Renewal is the outcome of a successful silent refresh. RefreshToken is
// empty when the issuer did not rotate, in which case the previously stored
// refresh credential remains valid. RealtimeToken carries a re-minted
// realtime authorization when the issuer's response set one.
type Renewal struct {
	AccessToken   string
	RefreshToken  string
	RealtimeToken string
}

// OAuthGrant is a third-party authorization grant forwarded to the issuer's
// federation endpoint.
type OAuthGrant struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// TokenExpiry reads the exp claim of a token without verifying its
// signature. Credentials are opaque to this service; expiry is only a
// routing hint and the backend remains the authority on every call.
// The second return is false when the token carries no readable expiry.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired reports whether a token carries an exp claim in the past.
// Opaque tokens without a readable expiry are never reported as expired.
func TokenExpired(token string) bool {
	exp, ok := TokenExpiry(token)
	return ok && exp.Before(time.Now())
}

// TokenSubject reads the sub claim of a token without verifying its
// signature. Used only for event payloads, never for authorization.
func TokenSubject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
