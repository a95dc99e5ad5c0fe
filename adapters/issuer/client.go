package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/ports"
)

// Client talks to the issuer's auth endpoints over HTTP. All methods return
// the response's Set-Cookie list so callers can capture the realtime
// authorization the issuer may re-mint on any successful response.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an issuer client. An empty base URL is a fatal
// configuration error, surfaced as core.ErrServerConfig.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, core.ErrServerConfig
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// Login exchanges an identifier and secret for a credential pair.
func (c *Client) Login(ctx context.Context, identifier, secret string) (core.TokenPair, []*http.Cookie, error) {
	body := map[string]string{"identifier": identifier, "secret": secret}

	resp, err := c.post(ctx, "/auth/login", body)
	if err != nil {
		return core.TokenPair{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A 401 at login is a rejected secret, not an expired session;
		// there is nothing to renew yet.
		msg := decodeError(resp)
		if resp.StatusCode == http.StatusUnauthorized && strings.Contains(strings.ToLower(msg), "invalid") {
			return core.TokenPair{}, nil, fmt.Errorf("%w: %s", core.ErrInvalidCredentials, msg)
		}
		return core.TokenPair{}, nil, fmt.Errorf("%w: login rejected with status %d", core.ErrUnauthorized, resp.StatusCode)
	}

	pair, err := decodePair(resp)
	if err != nil {
		return core.TokenPair{}, nil, err
	}
	return pair, resp.Cookies(), nil
}

// Refresh mints a new access credential. The returned pair's RefreshToken
// is empty when the issuer chose not to rotate.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, []*http.Cookie, error) {
	body := map[string]string{"refresh_token": refreshToken}

	resp, err := c.post(ctx, "/auth/refresh", body)
	if err != nil {
		return core.TokenPair{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.TokenPair{}, nil, fmt.Errorf("%w: renewal rejected with status %d", core.ErrUnauthorized, resp.StatusCode)
	}

	pair, err := decodePair(resp)
	if err != nil {
		return core.TokenPair{}, nil, err
	}
	return pair, resp.Cookies(), nil
}

// Exchange forwards a third-party authorization grant to the federation
// endpoint for the named provider.
func (c *Client) Exchange(ctx context.Context, provider string, grant core.OAuthGrant) (core.TokenPair, []*http.Cookie, error) {
	resp, err := c.post(ctx, "/auth/oauth/"+provider, grant)
	if err != nil {
		return core.TokenPair{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.TokenPair{}, nil, fmt.Errorf("%w: federated exchange rejected with status %d", core.ErrUnauthorized, resp.StatusCode)
	}

	pair, err := decodePair(resp)
	if err != nil {
		return core.TokenPair{}, nil, err
	}
	return pair, resp.Cookies(), nil
}

// Logout revokes a refresh credential server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}

	resp, err := c.post(ctx, "/auth/logout", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revocation rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.MapTransportError(err)
	}
	return resp, nil
}

func decodePair(resp *http.Response) (core.TokenPair, error) {
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return core.TokenPair{}, fmt.Errorf("%w: malformed issuer response: %v", core.ErrNetwork, err)
	}
	if tr.Token == "" {
		return core.TokenPair{}, fmt.Errorf("%w: issuer response carried no token", core.ErrUnauthorized)
	}
	return core.TokenPair{AccessToken: tr.Token, RefreshToken: tr.RefreshToken}, nil
}

func decodeError(resp *http.Response) string {
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return ""
	}
	return er.text()
}

var _ ports.Issuer = (*Client)(nil)
