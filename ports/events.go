package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishSignedIn(ctx context.Context, identity string, sessionID string) error
	PublishLogout(ctx context.Context, identity string, sessionID string) error
}
