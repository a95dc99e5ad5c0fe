package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/ports"
	"github.com/teamforge/authedge/service"
)

// RequestGate creates middleware that guarantees an authenticated request
// never reaches a protected route without a valid access credential. The
// decision table, in order: public routes pass unconditionally; a pending
// federation handoff is redeemed exactly once; a valid access credential
// passes with zero network calls; a lone refresh credential triggers one
// silent renewal; everything else redirects to sign-in with the original
// path preserved.
func (s *Server) RequestGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if core.IsPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		store := s.store(c)

		if id, ok := store.Get(core.CookieHandoff); ok {
			store.Clear(core.CookieHandoff)

			env, err := s.exchange.ConsumeEnvelope(ctx, id)
			switch {
			case err != nil:
				// Missing, replayed or tampered envelope. Treat as absent
				// and let the cookie-backed steps decide.
				s.log.Warn("dropping unusable session envelope", "error", err)

			case env.RenewalFailed:
				store.Clear(core.CookieAccess)
				store.Clear(core.CookieRefresh)
				s.redirectToLogin(c)
				return

			default:
				if !s.adoptEnvelope(c, store, env) {
					return
				}
			}
		}

		// A valid access credential passes through unchanged, no network calls.
		if access, ok := store.Get(core.CookieAccess); ok && !core.TokenExpired(access) {
			c.Next()
			return
		}

		if _, err := s.renewer.RenewInto(ctx, store); err == nil {
			c.Next()
			return
		} else if !errors.Is(err, core.ErrUnauthorized) {
			s.log.Warn("silent renewal failed at the gate", "path", c.Request.URL.Path, "error", err)
		}

		s.redirectToLogin(c)
	}
}

// adoptEnvelope moves a consumed federation envelope into the cookie-backed
// session. Returns false when the request was terminated with a redirect.
func (s *Server) adoptEnvelope(c *gin.Context, store ports.CredentialStore, env core.SessionEnvelope) bool {
	if _, ok := store.Get(core.CookieAccess); ok {
		return true
	}

	if env.ExpiresAt.IsZero() || env.ExpiresAt.After(time.Now()) {
		store.Set(core.CookieAccess, env.AccessToken, core.AccessTTL)
		if _, ok := store.Get(core.CookieRefresh); !ok && env.RefreshToken != "" {
			store.Set(core.CookieRefresh, env.RefreshToken, core.RefreshTTL)
		}
		return true
	}

	// The envelope's access credential expired while waiting to be
	// redeemed. Renew from its refresh credential before continuing.
	renewal, err := s.renewer.Renew(c.Request.Context(), env.RefreshToken)
	if err != nil {
		store.Clear(core.CookieAccess)
		store.Clear(core.CookieRefresh)
		s.redirectToLogin(c)
		return false
	}

	service.Persist(store, renewal)
	if renewal.RefreshToken == "" && env.RefreshToken != "" {
		// Rotation is optional; the envelope's refresh credential is still
		// the current one.
		store.Set(core.CookieRefresh, env.RefreshToken, core.RefreshTTL)
	}
	return true
}

func (s *Server) redirectToLogin(c *gin.Context) {
	target := url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusSeeOther, "/login?redirectUrl="+target)
	c.Abort()
}
