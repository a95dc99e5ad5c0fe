package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/ports"
)

// Exchange converts external identity assertions (a password, or a
// third-party authorization grant) into the application's own credential
// pair. The direct path writes straight into the cookie store; the
// federated path produces a signed session envelope consumed exactly once
// by the request gate on the following request.
type Exchange struct {
	issuer    ports.Issuer
	envelopes ports.EnvelopeStore
	events    ports.EventPublisher
	secret    []byte
	log       *slog.Logger
}

// NewExchange creates an identity exchange service. secret signs session
// envelopes and must be stable across instances sharing an envelope store.
func NewExchange(issuer ports.Issuer, envelopes ports.EnvelopeStore, events ports.EventPublisher, secret []byte, log *slog.Logger) *Exchange {
	return &Exchange{
		issuer:    issuer,
		envelopes: envelopes,
		events:    events,
		secret:    secret,
		log:       log,
	}
}

// Login exchanges an identifier and secret for credentials, persists them,
// and returns the validated post-login redirect target. On failure nothing
// is stored.
func (e *Exchange) Login(ctx context.Context, store ports.CredentialStore, identifier, secret, target string) (string, error) {
	pair, cks, err := e.issuer.Login(ctx, identifier, secret)
	if err != nil {
		return "", err
	}

	store.Set(core.CookieAccess, pair.AccessToken, core.AccessTTL)
	if pair.RefreshToken != "" {
		store.Set(core.CookieRefresh, pair.RefreshToken, core.RefreshTTL)
	}
	if rt := realtimeCookie(cks); rt != "" {
		store.Set(core.CookieRealtime, rt, core.RealtimeTTL)
	}

	if e.events != nil {
		if perr := e.events.PublishLogin(ctx, core.TokenSubject(pair.AccessToken)); perr != nil {
			e.log.Warn("failed to publish login event", "error", perr)
		}
	}

	return core.SafeRedirectTarget(target), nil
}

// Federate forwards a third-party grant to the issuer and stores the
// resulting credential pair as a signed session envelope under a one-time
// handoff ID. The caller sets the ID as the handoff cookie; the request
// gate redeems it on the next request and moves state into the ordinary
// cookie-backed flow.
func (e *Exchange) Federate(ctx context.Context, provider string, grant core.OAuthGrant) (string, error) {
	pair, _, err := e.issuer.Exchange(ctx, provider, grant)
	if err != nil {
		return "", err
	}

	expiresAt, _ := core.TokenExpiry(pair.AccessToken)
	env := core.SessionEnvelope{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    expiresAt,
	}

	signed, err := core.SignEnvelope(env, e.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session envelope: %w", err)
	}

	id := uuid.New().String()
	if err := e.envelopes.Put(ctx, id, signed, core.HandoffTTL); err != nil {
		return "", fmt.Errorf("failed to store session envelope: %w", err)
	}

	return id, nil
}

// ConsumeEnvelope redeems a handoff ID. The envelope is removed from the
// store before parsing, so a replayed ID misses even when the signature
// check would fail.
func (e *Exchange) ConsumeEnvelope(ctx context.Context, id string) (core.SessionEnvelope, error) {
	signed, err := e.envelopes.Consume(ctx, id)
	if err != nil {
		return core.SessionEnvelope{}, err
	}
	return core.ParseEnvelope(signed, e.secret)
}

// Logout revokes the refresh credential server-side (best effort) and
// clears every credential cookie. Clearing happens even when revocation
// fails, so the browser is always signed out locally.
func (e *Exchange) Logout(ctx context.Context, store ports.CredentialStore) {
	subject := ""
	if access, ok := store.Get(core.CookieAccess); ok {
		subject = core.TokenSubject(access)
	}

	if refreshToken, ok := store.Get(core.CookieRefresh); ok {
		if err := e.issuer.Logout(ctx, refreshToken); err != nil {
			e.log.Warn("best-effort revocation failed", "error", err)
		}
	}

	store.Clear(core.CookieAccess)
	store.Clear(core.CookieRefresh)
	store.Clear(core.CookieRealtime)
	store.Clear(core.CookieHandoff)

	if e.events != nil {
		if perr := e.events.PublishLogout(ctx, subject); perr != nil {
			e.log.Warn("failed to publish logout event", "error", perr)
		}
	}
}
