package cmd

import (
	"context"
	"fmt"
	"time"

	"creditengine/application"
	"creditengine/config"
	"creditengine/database"
	"creditengine/events"
	"creditengine/infrastructure"
	"creditengine/infrastructure/observability"
	"creditengine/repository"
	"creditengine/service"

	log "github.com/sirupsen/logrus"
)

// runtime holds the wired components shared by the long-running process and
// the one-shot subcommands
type runtime struct {
	cfg        *config.Config
	db         *database.DB
	nats       *infrastructure.NATSClient
	grants     service.GrantService
	revocation service.RevocationService
}

func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, falling back to info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg := config.Get()
	configureLogging(cfg)

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}
	metrics := observability.GetMetrics()

	eventBus := events.NewBus()

	rt := &runtime{cfg: cfg, db: db}

	var publisher application.EventPublisher = infrastructure.NewNoopEventPublisher()
	if cfg.NATSEnabled {
		client := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := client.Connect(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		mapper := infrastructure.NewEventSubjectMapper()
		if err := infrastructure.EnsureCreditEventStream(client, mapper); err != nil {
			log.WithError(err).Warn("Failed to ensure credit event stream")
		}
		publisher = infrastructure.NewNATSEventPublisher(client, mapper, metrics)
		rt.nats = client
	} else {
		log.Info("NATS disabled, credit events stay in-process")
	}
	application.RegisterSubscriptions(eventBus, publisher, metrics)

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	executor := service.NewExecutor(uowFactory, repository.NewGrantLock(db), cfg.ExecutionBatchSize)
	rt.grants = service.NewGrantService(uowFactory, executor, cfg.DefaultGrantSchedule)
	rt.revocation = service.NewRevocationService(uowFactory)

	return rt, nil
}

func (rt *runtime) close() {
	// Event handlers run asynchronously after commit; give them a moment
	time.Sleep(500 * time.Millisecond)

	if rt.nats != nil {
		if err := rt.nats.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Closing database connection...")
	rt.db.Close()
}

// Run starts the grant scheduler and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	log.Info("Starting credit engine...")

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.cfg.SweepEnabled {
		worker, err := application.NewGrantSweepWorker(rt.grants, rt.cfg.SweepSchedule, observability.GetMetrics())
		if err != nil {
			return fmt.Errorf("failed to create grant sweep worker: %w", err)
		}
		stop := worker.Start(ctx)
		defer stop()
	} else {
		log.Info("Grant sweep disabled")
	}

	log.Infof("Credit engine is running in %s mode...", rt.cfg.Environment)
	<-ctx.Done()

	log.Info("Shutting down credit engine...")
	return nil
}

// RunGrant executes one grant immediately without moving its schedule
func RunGrant(ctx context.Context, grantID int64, testMode bool) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	result, err := rt.grants.RunGrantNow(ctx, grantID, testMode)
	if err != nil {
		return fmt.Errorf("failed to run grant %d: %w", grantID, err)
	}

	log.WithFields(log.Fields{
		"grantID":    grantID,
		"logID":      result.LogID,
		"awarded":    result.AwardedCount,
		"declined":   result.DeclinedCount,
		"duplicates": result.DuplicateCount,
		"testMode":   testMode,
	}).Info("Grant executed")
	return nil
}

// Sweep runs a single scheduler pass over the due grants
func Sweep(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	worker, err := application.NewGrantSweepWorker(rt.grants, rt.cfg.SweepSchedule, observability.GetMetrics())
	if err != nil {
		return err
	}
	_, err = worker.RunOnce(ctx)
	return err
}

// ResetPackage wipes the award history of a package
func ResetPackage(ctx context.Context, packageID int64) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	result, err := rt.revocation.ResetPackage(ctx, packageID)
	if err != nil {
		return fmt.Errorf("failed to reset package %d: %w", packageID, err)
	}

	log.WithFields(log.Fields{
		"packageID":  packageID,
		"awards":     result.AwardsDeleted,
		"declines":   result.DeclinesDeleted,
		"logs":       result.LogsDeleted,
		"exceptions": result.ExceptionsDeleted,
		"flags":      result.FlagsCleared,
	}).Info("Package reset")
	return nil
}
