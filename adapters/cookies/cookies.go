package cookies

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/authedge/ports"
)

// Store is a cookie-backed implementation of the CredentialStore interface,
// scoped to a single request/response cycle. Writes are buffered so a
// credential set earlier in the same request (e.g. by the request gate) is
// visible to later readers before the response reaches the browser.
type Store struct {
	ctx     *gin.Context
	secure  bool
	written map[string]string
	cleared map[string]bool
}

// New creates a credential store over the given request context. secure
// controls the Secure cookie attribute and should be true outside local
// development.
func New(c *gin.Context, secure bool) *Store {
	return &Store{
		ctx:     c,
		secure:  secure,
		written: make(map[string]string),
		cleared: make(map[string]bool),
	}
}

// Get returns the named credential, preferring values written during this
// request over what the browser sent.
func (s *Store) Get(name string) (string, bool) {
	if value, ok := s.written[name]; ok {
		return value, true
	}
	if s.cleared[name] {
		return "", false
	}
	cookie, err := s.ctx.Request.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set writes the named credential with the fixed security attributes.
func (s *Store) Set(name, value string, ttl time.Duration) {
	s.written[name] = value
	delete(s.cleared, name)

	http.SetCookie(s.ctx.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the named credential on the browser.
func (s *Store) Clear(name string) {
	delete(s.written, name)
	s.cleared[name] = true

	http.SetCookie(s.ctx.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

var _ ports.CredentialStore = (*Store)(nil)
