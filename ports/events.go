package ports

import "context"

// EventPublisher notifies other instances about session lifecycle changes
type EventPublisher interface {
	PublishLogin(ctx context.Context, subject string) error
	PublishRenewal(ctx context.Context, subject string) error
	PublishLogout(ctx context.Context, subject string) error
}
