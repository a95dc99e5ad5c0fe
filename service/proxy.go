package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/ports"
)

// ProxyClient forwards browser-originated calls to the backend API with the
// current access credential attached as a bearer token. A 401 triggers at
// most one silent renewal and at most one retry; a second 401 is surfaced
// to the caller untouched.
type ProxyClient struct {
	backendURL string
	renewer    *Renewer
	http       *http.Client
	log        *slog.Logger
}

// ProxyResult carries the backend's response back to the relay handler.
// Cookies are replayed to the browser so a rotated realtime authorization
// reaches it.
type ProxyResult struct {
	Status      int
	ContentType string
	Body        []byte
	Cookies     []*http.Cookie
}

// NewProxyClient creates an authenticated request client for the backend
// under the given base URL.
func NewProxyClient(backendURL string, renewer *Renewer, timeout time.Duration, log *slog.Logger) (*ProxyClient, error) {
	if backendURL == "" {
		return nil, core.ErrServerConfig
	}
	return &ProxyClient{
		backendURL: strings.TrimSuffix(backendURL, "/"),
		renewer:    renewer,
		http:       &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// Forward issues the request against the backend-relative endpoint. When no
// usable access credential is stored, renewal happens before the first
// attempt. Renewed credentials are persisted before the retried request is
// sent, so the response cookies always match the request that succeeded.
func (p *ProxyClient) Forward(ctx context.Context, store ports.CredentialStore, method, endpoint string, body []byte) (*ProxyResult, error) {
	access, ok := store.Get(core.CookieAccess)
	if !ok || core.TokenExpired(access) {
		renewal, err := p.renewer.RenewInto(ctx, store)
		if err != nil {
			return nil, err
		}
		access = renewal.AccessToken
	}

	result, err := p.do(ctx, method, endpoint, body, access)
	if err != nil {
		return nil, err
	}
	if result.Status != http.StatusUnauthorized {
		return result, nil
	}

	// One silent renewal, one retry. If the renewal fails the caller gets
	// an unauthorized outcome with no further attempt for this call.
	renewal, err := p.renewer.RenewInto(ctx, store)
	if err != nil {
		return nil, err
	}

	p.log.Debug("retrying proxied request after renewal", "method", method, "endpoint", endpoint)
	return p.do(ctx, method, endpoint, body, renewal.AccessToken)
}

func (p *ProxyClient) do(ctx context.Context, method, endpoint string, body []byte, access string) (*ProxyResult, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.backendURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, core.MapTransportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.MapTransportError(err)
	}

	return &ProxyResult{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
		Cookies:     resp.Cookies(),
	}, nil
}
