package application

import (
	"context"
	"fmt"
	"time"

	"creditengine/infrastructure/observability"
	"creditengine/service"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// GrantSweepWorker runs the grant scheduler on a cron timer. A sweep still
// running when the timer fires again is not overlapped.
type GrantSweepWorker struct {
	grantService service.GrantService
	schedule     string
	metrics      *observability.MetricsProvider
	now          func() time.Time
}

// NewGrantSweepWorker creates a sweep worker firing on the given cron spec
func NewGrantSweepWorker(grantService service.GrantService, schedule string, metrics *observability.MetricsProvider) (*GrantSweepWorker, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &GrantSweepWorker{
		grantService: grantService,
		schedule:     schedule,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start begins the sweep timer. The returned function stops the timer and
// waits for a running sweep to return.
func (w *GrantSweepWorker) Start(ctx context.Context) func() {
	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	// the schedule was validated by the constructor
	_, _ = c.AddFunc(w.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.RunOnce(ctx); err != nil {
			log.WithError(err).Error("Grant sweep failed")
		}
	})

	c.Start()
	log.WithField("schedule", w.schedule).Info("Grant sweep worker started")

	return func() {
		log.Info("Grant sweep worker shutting down...")
		<-c.Stop().Done()
	}
}

// RunOnce performs a single sweep over the grants due now
func (w *GrantSweepWorker) RunOnce(ctx context.Context) (*service.SweepResult, error) {
	start := time.Now()
	result, err := w.grantService.Sweep(ctx, w.now())
	w.metrics.RecordSweep(time.Since(start), err != nil)
	if err != nil {
		return result, fmt.Errorf("failed to sweep grants: %w", err)
	}
	return result, nil
}
