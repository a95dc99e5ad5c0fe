package service

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/ports"
)

// Renewer performs silent credential renewal against the issuer. Concurrent
// renewals holding the same refresh credential (two tabs, a page load racing
// a dropped realtime connection) are coalesced into a single issuer call so
// an optional rotation cannot be overwritten by a stale duplicate response.
type Renewer struct {
	issuer ports.Issuer
	events ports.EventPublisher
	log    *slog.Logger

	group singleflight.Group
}

// NewRenewer creates a renewal coordinator
func NewRenewer(issuer ports.Issuer, events ports.EventPublisher, log *slog.Logger) *Renewer {
	return &Renewer{
		issuer: issuer,
		events: events,
		log:    log,
	}
}

// Renew exchanges the refresh credential for a new access credential.
// On failure no state is mutated anywhere; the caller decides whether to
// redirect to sign-in. Persistence of a successful outcome is the caller's
// job, because cookie jars are scoped to individual responses.
func (r *Renewer) Renew(ctx context.Context, refreshToken string) (core.Renewal, error) {
	if refreshToken == "" {
		return core.Renewal{}, core.ErrUnauthorized
	}

	v, err, _ := r.group.Do(refreshToken, func() (interface{}, error) {
		pair, cks, err := r.issuer.Refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}

		renewal := core.Renewal{
			AccessToken:   pair.AccessToken,
			RefreshToken:  pair.RefreshToken,
			RealtimeToken: realtimeCookie(cks),
		}

		if r.events != nil {
			if perr := r.events.PublishRenewal(ctx, core.TokenSubject(pair.AccessToken)); perr != nil {
				r.log.Warn("failed to publish renewal event", "error", perr)
			}
		}

		return renewal, nil
	})
	if err != nil {
		return core.Renewal{}, err
	}

	return v.(core.Renewal), nil
}

// RenewInto renews with the store's current refresh credential and persists
// the outcome into the same store before returning.
func (r *Renewer) RenewInto(ctx context.Context, store ports.CredentialStore) (core.Renewal, error) {
	refreshToken, ok := store.Get(core.CookieRefresh)
	if !ok {
		return core.Renewal{}, core.ErrUnauthorized
	}

	renewal, err := r.Renew(ctx, refreshToken)
	if err != nil {
		return core.Renewal{}, err
	}

	Persist(store, renewal)
	return renewal, nil
}

// Persist writes a renewal outcome into a credential store. The refresh
// credential is only replaced when the issuer actually rotated it; an empty
// RefreshToken must never clear the stored one.
func Persist(store ports.CredentialStore, renewal core.Renewal) {
	store.Set(core.CookieAccess, renewal.AccessToken, core.AccessTTL)
	if renewal.RefreshToken != "" {
		store.Set(core.CookieRefresh, renewal.RefreshToken, core.RefreshTTL)
	}
	if renewal.RealtimeToken != "" {
		store.Set(core.CookieRealtime, renewal.RealtimeToken, core.RealtimeTTL)
	}
}

// realtimeCookie extracts the realtime authorization from an issuer
// response's Set-Cookie list.
func realtimeCookie(cks []*http.Cookie) string {
	for _, ck := range cks {
		if ck.Name == core.CookieRealtime {
			return ck.Value
		}
	}
	return ""
}
