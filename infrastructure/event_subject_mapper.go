package infrastructure

import (
	"fmt"

	"creditengine/events"
)

// EventSubjectMapper handles mapping between engine events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts an event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeGrantExecuted:
		return "credits.grant.executed"
	case events.EventTypeAwardRevoked:
		return "credits.award.revoked"
	case events.EventTypePackageReset:
		return "credits.package.reset"
	default:
		return fmt.Sprintf("credits.unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "credits.grant.executed":
		return events.EventTypeGrantExecuted
	case "credits.award.revoked":
		return events.EventTypeAwardRevoked
	case "credits.package.reset":
		return events.EventTypePackageReset
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"credits.grant.executed",
		"credits.award.revoked",
		"credits.package.reset",
	}
}
