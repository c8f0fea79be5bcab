package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"creditengine/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the credit engine
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	grantExecutionsCounter       metric.Int64Counter
	creditsAwardedCounter        metric.Int64Counter
	creditsDeclinedCounter       metric.Int64Counter
	creditsDuplicatesCounter     metric.Int64Counter
	awardsRevokedCounter         metric.Int64Counter
	packageResetsCounter         metric.Int64Counter
	sweepDurationHist            metric.Float64Histogram
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Info("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.initializeWithReader(reader); err != nil {
		return err
	}

	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized successfully")
	return nil
}

// initializeWithReader builds the meter provider around a reader and creates
// the instruments. Initialize calls it with mp.mu held.
func (mp *MetricsProvider) initializeWithReader(reader sdkmetric.Reader) error {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(mp.config.OTelServiceName),
		attribute.String("environment", mp.config.Environment),
	)

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("creditengine")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.grantExecutionsCounter, GrantExecutionsTotal, "Total number of grant executions"},
		{&mp.creditsAwardedCounter, CreditsAwardedTotal, "Total number of credits awarded"},
		{&mp.creditsDeclinedCounter, CreditsDeclinedTotal, "Total number of credits declined"},
		{&mp.creditsDuplicatesCounter, CreditsDuplicatesTotal, "Total number of candidates skipped as already awarded"},
		{&mp.awardsRevokedCounter, AwardsRevokedTotal, "Total number of awards revoked by administrators"},
		{&mp.packageResetsCounter, PackageResetsTotal, "Total number of award package resets"},
		{&mp.natsMessagesPublishedCounter, NATSMessagesPublishedTotal, "Total number of NATS messages published"},
	}
	for _, c := range counters {
		*c.target, err = mp.meter.Int64Counter(
			c.name,
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	mp.sweepDurationHist, err = mp.meter.Float64Histogram(
		SweepDuration,
		metric.WithDescription("Duration of grant scheduler sweeps in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep duration histogram: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordGrantExecution records a finished execution and its credit counts
func (mp *MetricsProvider) RecordGrantExecution(testMode, failed bool, awarded, declined, duplicates int) {
	if !mp.isEnabled() {
		return
	}

	ctx := context.Background()
	outcome := OutcomeSucceeded
	if failed {
		outcome = OutcomeFailed
	}
	attrs := metric.WithAttributes(attribute.String(LabelTestMode, strconv.FormatBool(testMode)))

	mp.grantExecutionsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(LabelTestMode, strconv.FormatBool(testMode)),
		attribute.String(LabelOutcome, outcome),
	))
	mp.creditsAwardedCounter.Add(ctx, int64(awarded), attrs)
	mp.creditsDeclinedCounter.Add(ctx, int64(declined), attrs)
	mp.creditsDuplicatesCounter.Add(ctx, int64(duplicates), attrs)
}

// RecordAwardRevoked records an administrator unaward
func (mp *MetricsProvider) RecordAwardRevoked() {
	if !mp.isEnabled() {
		return
	}
	mp.awardsRevokedCounter.Add(context.Background(), 1)
}

// RecordPackageReset records a package reset
func (mp *MetricsProvider) RecordPackageReset() {
	if !mp.isEnabled() {
		return
	}
	mp.packageResetsCounter.Add(context.Background(), 1)
}

// RecordSweep records the duration of one scheduler sweep
func (mp *MetricsProvider) RecordSweep(duration time.Duration, failed bool) {
	if !mp.isEnabled() {
		return
	}

	outcome := OutcomeSucceeded
	if failed {
		outcome = OutcomeFailed
	}
	mp.sweepDurationHist.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(attribute.String(LabelOutcome, outcome)),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled reports whether instruments exist to record into. A nil
// provider is valid and records nothing.
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
