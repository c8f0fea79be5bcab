package events

import (
	"context"
	"sync"

	"creditengine/models"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeGrantExecuted EventType = "grant_executed"
	EventTypeAwardRevoked  EventType = "award_revoked"
	EventTypePackageReset  EventType = "package_reset"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// AwardedCredit is one granted credit in the post-execution hand-off
type AwardedCredit struct {
	AwardID      int64  `json:"award_id"`
	ContestantID int64  `json:"contestant_id"`
	SessionID    int64  `json:"session_id"`
	CategoryID   int64  `json:"category_id"`
	CreditValue  string `json:"credit_value"`
}

// GrantExecutedEvent is the data contract handed to notification and
// certificate rendering after an execution's writes are committed
type GrantExecutedEvent struct {
	GrantID               int64           `json:"grant_id"`
	EventID               int64           `json:"event_id"`
	PackageID             int64           `json:"package_id"`
	ExecutionLogID        int64           `json:"execution_log_id"`
	TestMode              bool            `json:"test_mode"`
	Notify                bool            `json:"notify"`
	CertificateTemplateID *int64          `json:"certificate_template_id,omitempty"`
	EmailTemplateID       *int64          `json:"email_template_id,omitempty"`
	AwardedCount          int             `json:"awarded_count"`
	DeclinedCount         int             `json:"declined_count"`
	DuplicateCount        int             `json:"duplicate_count"`
	Failed                bool            `json:"failed"`
	Awards                []AwardedCredit `json:"awards"`
}

func (e GrantExecutedEvent) Type() EventType {
	return EventTypeGrantExecuted
}

// AwardRevokedEvent is emitted when an administrator unawards a credit
type AwardRevokedEvent struct {
	AwardID      int64 `json:"award_id"`
	ContestantID int64 `json:"contestant_id"`
	SessionID    int64 `json:"session_id"`
	CategoryID   int64 `json:"category_id"`
}

func (e AwardRevokedEvent) Type() EventType {
	return EventTypeAwardRevoked
}

// PackageResetEvent is emitted after a package's history was wiped
type PackageResetEvent struct {
	PackageID         int64 `json:"package_id"`
	AwardsDeleted     int64 `json:"awards_deleted"`
	DeclinesDeleted   int64 `json:"declines_deleted"`
	LogsDeleted       int64 `json:"logs_deleted"`
	ExceptionsDeleted int64 `json:"exceptions_deleted"`
	FlagsCleared      int64 `json:"flags_cleared"`
}

func (e PackageResetEvent) Type() EventType {
	return EventTypePackageReset
}

// NewGrantExecutedEvent builds the hand-off event for a finished execution
func NewGrantExecutedEvent(grant *models.Grant, result *models.ExecutionResult, testMode, failed bool) GrantExecutedEvent {
	awards := make([]AwardedCredit, 0, len(result.Awards))
	for _, a := range result.Awards {
		awards = append(awards, AwardedCredit{
			AwardID:      a.ID,
			ContestantID: a.ContestantID,
			SessionID:    a.SessionID,
			CategoryID:   a.CategoryID,
			CreditValue:  a.CreditValue.String(),
		})
	}
	return GrantExecutedEvent{
		GrantID:               grant.ID,
		EventID:               grant.EventID,
		PackageID:             grant.PackageID,
		ExecutionLogID:        result.LogID,
		TestMode:              testMode,
		Notify:                grant.Notify,
		CertificateTemplateID: grant.CertificateTemplateID,
		EmailTemplateID:       grant.EmailTemplateID,
		AwardedCount:          result.AwardedCount,
		DeclinedCount:         result.DeclinedCount,
		DuplicateCount:        result.DuplicateCount,
		Failed:                failed,
		Awards:                awards,
	}
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit dispatches an event to all registered handlers asynchronously
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits. Rolled back work never reaches the real bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the events queued so far
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// Flush emits pending events; called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events")

	// handlers outlive the transaction's context
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
