package application

import (
	"context"

	"creditengine/events"
)

// EventPublisher forwards committed engine events to the outside world
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
