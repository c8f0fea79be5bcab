package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"creditengine/events"

	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestRegisterSubscriptions_ForwardsEvents(t *testing.T) {
	bus := events.NewBus()
	publisher := &recordingPublisher{}
	RegisterSubscriptions(bus, publisher, nil)

	ctx := context.Background()
	bus.Emit(ctx, events.GrantExecutedEvent{GrantID: 1, AwardedCount: 3})
	bus.Emit(ctx, events.AwardRevokedEvent{AwardID: 2})
	bus.Emit(ctx, events.PackageResetEvent{PackageID: 9})

	assert.Eventually(t, func() bool { return publisher.count() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestRegisterSubscriptions_CommittedOnly(t *testing.T) {
	bus := events.NewBus()
	publisher := &recordingPublisher{}
	RegisterSubscriptions(bus, publisher, nil)

	rolledBack := events.NewTransactionalBus(bus)
	rolledBack.Publish(events.AwardRevokedEvent{AwardID: 1})
	rolledBack.Discard()

	committed := events.NewTransactionalBus(bus)
	committed.Publish(events.AwardRevokedEvent{AwardID: 2})
	assert.NoError(t, committed.Flush(context.Background()))

	assert.Eventually(t, func() bool { return publisher.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, publisher.count())
}
