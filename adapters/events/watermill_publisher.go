package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/teamforge/authedge/ports"
)

// Topics for session lifecycle events
const (
	LoginTopic   = "session.login"
	RenewalTopic = "session.renewed"
	LogoutTopic  = "session.logout"
)

// SessionEvent is the payload published on every lifecycle topic
type SessionEvent struct {
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, subject string) error {
	return p.publish(LoginTopic, subject)
}

// PublishRenewal publishes a silent renewal event
func (p *WatermillPublisher) PublishRenewal(ctx context.Context, subject string) error {
	return p.publish(RenewalTopic, subject)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, subject string) error {
	return p.publish(LogoutTopic, subject)
}

func (p *WatermillPublisher) publish(topic, subject string) error {
	event := SessionEvent{
		Subject:    subject,
		OccurredAt: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
