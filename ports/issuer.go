package ports

import (
	"context"
	"net/http"

	"github.com/teamforge/authedge/core"
)

// Issuer is the backend authority that mints and revokes credentials.
// Every call returns the raw Set-Cookie list of the issuer's response so
// callers can capture the realtime authorization it may carry.
type Issuer interface {
	// Login exchanges an identifier and secret for a credential pair.
	Login(ctx context.Context, identifier, secret string) (core.TokenPair, []*http.Cookie, error)

	// Refresh mints a new access credential from a refresh credential.
	// The returned pair's RefreshToken is empty when the issuer did not rotate.
	Refresh(ctx context.Context, refreshToken string) (core.TokenPair, []*http.Cookie, error)

	// Exchange forwards a third-party authorization grant to the issuer's
	// federation endpoint for the named provider.
	Exchange(ctx context.Context, provider string, grant core.OAuthGrant) (core.TokenPair, []*http.Cookie, error)

	// Logout revokes a refresh credential server-side.
	Logout(ctx context.Context, refreshToken string) error
}
