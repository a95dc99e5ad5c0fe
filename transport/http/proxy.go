package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teamforge/authedge/adapters/cookies"
	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/realtime"
)

var proxyMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Proxy forwards a browser-originated call to the backend API. The backend
// path travels in the mandatory endpoint query parameter; the response body
// and status are relayed as-is, together with any Set-Cookie headers.
func (s *Server) Proxy(c *gin.Context) {
	if !proxyMethods[c.Request.Method] {
		c.JSON(http.StatusMethodNotAllowed, core.ErrorEnvelope{
			Code:    core.CodeInvalidRequest,
			Status:  http.StatusMethodNotAllowed,
			Message: "method not allowed",
		})
		return
	}

	endpoint := c.Query("endpoint")
	if endpoint == "" || !strings.HasPrefix(endpoint, "/") || strings.HasPrefix(endpoint, "//") || strings.Contains(endpoint, "://") {
		writeInvalidRequest(c, "endpoint must be a backend-relative path")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeInvalidRequest(c, "unreadable request body")
		return
	}

	result, err := s.proxy.Forward(c.Request.Context(), s.store(c), c.Request.Method, endpoint, body)
	if err != nil {
		writeError(c, err)
		return
	}

	for _, ck := range result.Cookies {
		http.SetCookie(c.Writer, ck)
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(result.Status, contentType, result.Body)
}

// Events relays the hub's server-push stream to the browser. The upstream
// subscription is authorized by the realtime cookie; when the hub drops the
// stream, a silent renewal runs before reconnecting against the same topic
// set. If renewal fails the browser receives a single session_expired event
// and the stream ends.
func (s *Server) Events(c *gin.Context) {
	topics := c.QueryArray("topic")
	if len(topics) == 0 {
		writeInvalidRequest(c, "at least one topic parameter is required")
		return
	}
	for _, topic := range topics {
		if topic == "" {
			writeInvalidRequest(c, "topic values must not be blank")
			return
		}
	}
	if s.hubURL == "" {
		writeError(c, fmt.Errorf("%w: realtime hub URL is not configured", core.ErrServerConfig))
		return
	}

	// Headers are sent before streaming begins, so renewed credentials
	// cannot be written to this response. Seed a detached store from the
	// request's cookies; renewal outcomes feed the upstream reconnect only.
	upstream := cookies.NewMemory()
	if refreshToken, ok := s.store(c).Get(core.CookieRefresh); ok {
		upstream.Set(core.CookieRefresh, refreshToken, core.RefreshTTL)
	}
	token, _ := s.store(c).Get(core.CookieRealtime)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	sub := realtime.NewSubscriber(realtime.Config{
		HubURL: s.hubURL,
		Topics: topics,
		Token:  token,
		Renew: func(ctx context.Context) (string, error) {
			renewal, err := s.renewer.RenewInto(ctx, upstream)
			if err != nil {
				return "", err
			}
			return renewal.RealtimeToken, nil
		},
		OnMessage: func(msg realtime.Message) {
			writeSSE(c, msg.Event, msg.Data)
		},
		OnExpired: func() {
			writeSSE(c, "session_expired", []byte(`{"redirect":"/login"}`))
		},
		Log: s.log,
	})

	if err := sub.Run(c.Request.Context()); err != nil && c.Request.Context().Err() == nil {
		s.log.Debug("realtime relay ended", "error", err)
	}
}

func writeSSE(c *gin.Context, event string, data []byte) {
	if event != "" {
		fmt.Fprintf(c.Writer, "event: %s\n", event)
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
