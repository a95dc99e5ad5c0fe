package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamforge/authedge/adapters/cookies"
	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/service"
)

// Server contains the HTTP handlers for the session edge
type Server struct {
	exchange *service.Exchange
	renewer  *service.Renewer
	proxy    *service.ProxyClient
	hubURL   string
	secure   bool
	log      *slog.Logger
}

// NewServer creates the HTTP server handlers
func NewServer(exchange *service.Exchange, renewer *service.Renewer, proxy *service.ProxyClient, hubURL string, secure bool, log *slog.Logger) *Server {
	return &Server{
		exchange: exchange,
		renewer:  renewer,
		proxy:    proxy,
		hubURL:   hubURL,
		secure:   secure,
		log:      log,
	}
}

// credentialStoreKey caches the request's credential store in the gin
// context, so a credential the gate renews or adopts is visible to the
// downstream handler through the same read-your-writes buffer.
const credentialStoreKey = "authedge/credential-store"

func (s *Server) store(c *gin.Context) *cookies.Store {
	if v, ok := c.Get(credentialStoreKey); ok {
		return v.(*cookies.Store)
	}
	store := cookies.New(c, s.secure)
	c.Set(credentialStoreKey, store)
	return store
}

type loginRequest struct {
	Identifier  string `json:"identifier" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
	RedirectURL string `json:"redirectUrl"`
}

// Login handles the direct credential exchange
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidRequest(c, "identifier and secret are required")
		return
	}

	target, err := s.exchange.Login(c.Request.Context(), s.store(c), req.Identifier, req.Secret, req.RedirectURL)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, target)
}

// OAuthCallback handles the federated exchange for a provider. The issuer's
// credential pair is wrapped in a session envelope; only the one-time
// handoff ID travels to the browser. The request gate redeems it on the
// next request.
func (s *Server) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")

	var grant core.OAuthGrant
	if err := c.ShouldBindJSON(&grant); err != nil {
		writeInvalidRequest(c, "access_token is required")
		return
	}

	id, err := s.exchange.Federate(c.Request.Context(), provider, grant)
	if err != nil {
		writeError(c, err)
		return
	}

	s.store(c).Set(core.CookieHandoff, id, core.HandoffTTL)

	c.JSON(http.StatusOK, gin.H{"redirect": core.DefaultRedirectTarget})
}

// Logout revokes the session server-side and clears the credential cookies.
// Clearing always happens, even when revocation fails.
func (s *Server) Logout(c *gin.Context) {
	s.exchange.Logout(c.Request.Context(), s.store(c))

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LoginPage is the public sign-in route. Rendering is owned by the
// frontend; the edge only echoes the preserved return target.
func (s *Server) LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "sign in required",
		"redirectUrl": c.Query("redirectUrl"),
	})
}

// Me returns the subject of the current session. The request gate has
// already guaranteed a usable access credential.
func (s *Server) Me(c *gin.Context) {
	access, ok := s.store(c).Get(core.CookieAccess)
	if !ok {
		writeError(c, core.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subject": core.TokenSubject(access)})
}

func writeError(c *gin.Context, err error) {
	env := core.NewErrorEnvelope(err)
	c.JSON(env.Status, env)
}

func writeInvalidRequest(c *gin.Context, violations ...string) {
	c.JSON(http.StatusBadRequest, core.ErrorEnvelope{
		Code:       core.CodeInvalidRequest,
		Status:     http.StatusBadRequest,
		Message:    "invalid request",
		Violations: violations,
	})
}
