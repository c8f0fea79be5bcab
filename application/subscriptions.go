package application

import (
	"context"

	"creditengine/events"
	"creditengine/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// RegisterSubscriptions wires the in-process bus to metrics and to the
// outbound publisher. Handlers only see events whose transaction committed.
func RegisterSubscriptions(bus *events.Bus, publisher EventPublisher, metrics *observability.MetricsProvider) {
	forward := func(ctx context.Context, event events.Event) {
		if err := publisher.Publish(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to publish event")
		}
	}

	bus.Subscribe(events.EventTypeGrantExecuted, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.GrantExecutedEvent); ok {
			metrics.RecordGrantExecution(e.TestMode, e.Failed, e.AwardedCount, e.DeclinedCount, e.DuplicateCount)
		}
		forward(ctx, event)
	})

	bus.Subscribe(events.EventTypeAwardRevoked, func(ctx context.Context, event events.Event) {
		metrics.RecordAwardRevoked()
		forward(ctx, event)
	})

	bus.Subscribe(events.EventTypePackageReset, func(ctx context.Context, event events.Event) {
		metrics.RecordPackageReset()
		forward(ctx, event)
	})
}
