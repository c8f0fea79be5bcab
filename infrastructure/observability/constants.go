package observability

// Metric name prefixes
const (
	MetricPrefix = "creditengine"
)

// Metric names
const (
	// Grant execution metrics
	GrantExecutionsTotal   = MetricPrefix + ".grants.executions_total"
	CreditsAwardedTotal    = MetricPrefix + ".credits.awarded_total"
	CreditsDeclinedTotal   = MetricPrefix + ".credits.declined_total"
	CreditsDuplicatesTotal = MetricPrefix + ".credits.duplicates_total"

	// Administrative actions
	AwardsRevokedTotal = MetricPrefix + ".awards.revoked_total"
	PackageResetsTotal = MetricPrefix + ".packages.resets_total"

	// Scheduler metrics
	SweepDuration = MetricPrefix + ".sweep.duration"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelEventType = "event_type"
	LabelTestMode  = "test_mode"
	LabelOutcome   = "outcome"
)

// Execution and sweep outcomes
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)
