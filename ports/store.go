package ports

import (
	"context"
	"time"
)

// CredentialStore abstracts the credential cookies for one request cycle.
// A missing credential is reported as absent, never as an error.
type CredentialStore interface {
	Get(name string) (string, bool)
	Set(name, value string, ttl time.Duration)
	Clear(name string)
}

// EnvelopeStore holds signed session envelopes between the federated
// sign-in callback and the request that consumes them. Consume removes the
// envelope so a handoff ID can be redeemed at most once.
type EnvelopeStore interface {
	Put(ctx context.Context, id, envelope string, ttl time.Duration) error
	Consume(ctx context.Context, id string) (string, error)
}
