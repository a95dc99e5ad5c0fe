package issuer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamforge/authedge/core"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("", time.Second)
	assert.ErrorIs(t, err, core.ErrServerConfig)
}

func TestLoginSuccessCapturesRealtimeCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["identifier"])
		assert.Equal(t, "hunter2", body["secret"])

		http.SetCookie(w, &http.Cookie{Name: core.CookieRealtime, Value: "rt-1"})
		json.NewEncoder(w).Encode(map[string]string{
			"token":         "access-1",
			"refresh_token": "refresh-1",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	pair, cks, err := client.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "access-1", pair.AccessToken)
	assert.Equal(t, "refresh-1", pair.RefreshToken)

	require.Len(t, cks, 1)
	assert.Equal(t, core.CookieRealtime, cks[0].Name)
	assert.Equal(t, "rt-1", cks[0].Value)
}

func TestLoginRejectionMapsToInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, _, err = client.Login(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestRefreshWithoutRotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"token": "T2"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	pair, _, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "T2", pair.AccessToken)
	assert.Empty(t, pair.RefreshToken, "no rotation must surface as an empty refresh token")
}

func TestRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, _, err = client.Refresh(context.Background(), "stale")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestRefreshMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, _, err = client.Refresh(context.Background(), "refresh-1")
	assert.ErrorIs(t, err, core.ErrNetwork)
}

func TestExchangeForwardsGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/oauth/google", r.URL.Path)

		var grant core.OAuthGrant
		require.NoError(t, json.NewDecoder(r.Body).Decode(&grant))
		assert.Equal(t, "provider-access", grant.AccessToken)
		assert.Equal(t, "provider-id-token", grant.IDToken)

		json.NewEncoder(w).Encode(map[string]string{
			"token":         "access-1",
			"refresh_token": "refresh-1",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	pair, _, err := client.Exchange(context.Background(), "google", core.OAuthGrant{
		AccessToken: "provider-access",
		IDToken:     "provider-id-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-1", pair.AccessToken)
}

func TestNetworkErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, _, err = client.Refresh(context.Background(), "refresh-1")
	assert.ErrorIs(t, err, core.ErrNetwork)
}

func TestTimeoutMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 20*time.Millisecond)
	require.NoError(t, err)

	_, _, err = client.Refresh(context.Background(), "refresh-1")
	assert.ErrorIs(t, err, core.ErrTimeout)
}

func TestLogoutRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/logout", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	assert.Error(t, client.Logout(context.Background(), "refresh-1"))
}
