package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamforge/authedge/core"
)

func TestProxyRelaysBackendResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/issues", r.URL.Path)
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		http.SetCookie(w, &http.Cookie{Name: core.CookieRealtime, Value: "rt-rotated"})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	}))
	defer backend.Close()

	env := newTestEnv(t, &fakeIssuer{}, backend.URL, "")

	req := httptest.NewRequest(http.MethodGet, "/api/proxy?endpoint=/issues", nil)
	req.AddCookie(&http.Cookie{Name: core.CookieAccess, Value: "T1"})

	w := env.do(req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1}`, w.Body.String())

	rt := responseCookie(w, core.CookieRealtime)
	require.NotNil(t, rt)
	assert.Equal(t, "rt-rotated", rt.Value)
}

func TestProxyRenewedCredentialsReachTheBrowser(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer backend.Close()

	issuer := &fakeIssuer{
		refreshFunc: func(string) (core.TokenPair, []*http.Cookie, error) {
			return core.TokenPair{AccessToken: "T2", RefreshToken: "R2"}, nil, nil
		},
	}
	env := newTestEnv(t, issuer, backend.URL, "")

	req := httptest.NewRequest(http.MethodGet, "/api/proxy?endpoint=/issues", nil)
	req.AddCookie(&http.Cookie{Name: core.CookieAccess, Value: "T1"})
	req.AddCookie(&http.Cookie{Name: core.CookieRefresh, Value: "R1"})

	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), issuer.refreshCalls.Load())

	access := responseCookie(w, core.CookieAccess)
	require.NotNil(t, access)
	assert.Equal(t, "T2", access.Value)
	refresh := responseCookie(w, core.CookieRefresh)
	require.NotNil(t, refresh)
	assert.Equal(t, "R2", refresh.Value)
}

func TestProxyUnauthorizedAfterFailedRenewal(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	issuer := &fakeIssuer{
		refreshFunc: func(string) (core.TokenPair, []*http.Cookie, error) {
			return core.TokenPair{}, nil, core.ErrUnauthorized
		},
	}
	env := newTestEnv(t, issuer, backend.URL, "")

	req := httptest.NewRequest(http.MethodGet, "/api/proxy?endpoint=/issues", nil)
	req.AddCookie(&http.Cookie{Name: core.CookieAccess, Value: "T1"})
	req.AddCookie(&http.Cookie{Name: core.CookieRefresh, Value: "R1"})

	w := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var envlp core.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envlp))
	assert.Equal(t, core.CodeUnauthorized, envlp.Code)
}

func TestProxyEndpointValidation(t *testing.T) {
	env := newTestEnv(t, &fakeIssuer{}, "", "")

	for _, endpoint := range []string{"", "issues", "//evil.example", "https://evil.example"} {
		req := httptest.NewRequest(http.MethodGet, "/api/proxy?endpoint="+endpoint, nil)
		req.AddCookie(&http.Cookie{Name: core.CookieAccess, Value: "T1"})

		w := env.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "endpoint %q must be rejected", endpoint)
	}
}

func TestProxyMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &fakeIssuer{}, "", "")

	req := httptest.NewRequest(http.MethodOptions, "/api/proxy?endpoint=/issues", nil)
	req.AddCookie(&http.Cookie{Name: core.CookieAccess, Value: "T1"})

	w := env.do(req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestEventsRequiresTopics(t *testing.T) {
	env := newTestEnv(t, &fakeIssuer{}, "", "http://hub.invalid")

	for _, target := range []string{
		"/api/events",
		"/api/events?topic=",
		"/api/events?topic=issues&topic=",
	} {
		w := env.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "target %q", target)
	}
}

func TestEventsRequiresConfiguredHub(t *testing.T) {
	env := newTestEnv(t, &fakeIssuer{}, "", "")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/events?topic=issues", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var envlp core.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envlp))
	assert.Equal(t, core.CodeServerConfig, envlp.Code)
}

func TestEventsRelaysStreamAndSignalsExpiry(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"issues"}, r.URL.Query()["topic"])
		ck, err := r.Cookie(core.CookieRealtime)
		require.NoError(t, err)
		assert.Equal(t, "rt-1", ck.Value)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: issue_updated\ndata: {\"id\":1}\n\n")
		w.(http.Flusher).Flush()
		// stream ends; with no refresh credential the relay cannot renew
	}))
	defer hub.Close()

	env := newTestEnv(t, &fakeIssuer{}, "", hub.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/events?topic=issues", nil)
	req.AddCookie(&http.Cookie{Name: core.CookieRealtime, Value: "rt-1"})

	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: issue_updated\ndata: {\"id\":1}\n\n")

	// Renewal without a refresh credential fails, so the browser gets the
	// terminal expiry event exactly once.
	assert.Equal(t, 1, strings.Count(body, "event: session_expired"))
	assert.Contains(t, body, `data: {"redirect":"/login"}`)
}

func TestEventsRenewsUpstreamMidStream(t *testing.T) {
	var connections atomic.Int32
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connections.Add(1)
		ck, err := r.Cookie(core.CookieRealtime)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if n == 1 {
			assert.Equal(t, "rt-1", ck.Value)
			fmt.Fprint(w, "data: first\n\n")
			w.(http.Flusher).Flush()
			return
		}
		assert.Equal(t, "rt-2", ck.Value)
		fmt.Fprint(w, "data: second\n\n")
		w.(http.Flusher).Flush()
	}))
	defer hub.Close()

	var renewals atomic.Int32
	issuer := &fakeIssuer{
		refreshFunc: func(refreshToken string) (core.TokenPair, []*http.Cookie, error) {
			if renewals.Add(1) == 1 {
				assert.Equal(t, "R1", refreshToken)
				return core.TokenPair{AccessToken: "T2"}, []*http.Cookie{
					{Name: core.CookieRealtime, Value: "rt-2"},
				}, nil
			}
			return core.TokenPair{}, nil, core.ErrUnauthorized
		},
	}
	env := newTestEnv(t, issuer, "", hub.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/events?topic=issues", nil)
	req.AddCookie(&http.Cookie{Name: core.CookieRealtime, Value: "rt-1"})
	req.AddCookie(&http.Cookie{Name: core.CookieRefresh, Value: "R1"})

	w := env.do(req)

	assert.Equal(t, int32(2), connections.Load())
	body := w.Body.String()
	assert.Contains(t, body, "data: first\n\n")
	assert.Contains(t, body, "data: second\n\n")
	assert.Equal(t, 1, strings.Count(body, "event: session_expired"))
}

// Renewal during an active relay must never leak credentials into the
// browser-facing response, whose headers were already sent.
func TestEventsDoesNotWriteCredentialCookies(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: first\n\n")
		w.(http.Flusher).Flush()
	}))
	defer hub.Close()

	issuer := &fakeIssuer{
		refreshFunc: func(string) (core.TokenPair, []*http.Cookie, error) {
			return core.TokenPair{}, nil, core.ErrUnauthorized
		},
	}
	env := newTestEnv(t, issuer, "", hub.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/events?topic=issues", nil)
	req.AddCookie(&http.Cookie{Name: core.CookieRealtime, Value: "rt-1"})
	req.AddCookie(&http.Cookie{Name: core.CookieRefresh, Value: "R1"})

	w := env.do(req)

	assert.Empty(t, w.Result().Cookies())
}
