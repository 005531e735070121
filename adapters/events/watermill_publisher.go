package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/polkauth/ports"
)

// Topics events are published on
const (
	TopicSignedIn = "polkauth.signed_in"
	TopicLogout   = "polkauth.logout"
)

// SessionEvent is the payload of both sign-in and logout events
type SessionEvent struct {
	Identity  string    `json:"identity"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// Option configures a WatermillPublisher
type Option func(*WatermillPublisher)

// WithClock sets the time source stamped into events
func WithClock(now func() time.Time) Option {
	return func(p *WatermillPublisher) { p.now = now }
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, opts ...Option) ports.EventPublisher {
	p := &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishSignedIn publishes a sign-in event
func (p *WatermillPublisher) PublishSignedIn(ctx context.Context, identity string, sessionID string) error {
	return p.publish(ctx, TopicSignedIn, identity, sessionID)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, identity string, sessionID string) error {
	return p.publish(ctx, TopicLogout, identity, sessionID)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, identity, sessionID string) error {
	event := SessionEvent{
		Identity:  identity,
		SessionID: sessionID,
		At:        p.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("identity", identity)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}

	return nil
}
