// Command claimcheck validates a directory of HCFA claim files against their
// referral orders and routes each claim to an approved, denied, or errored
// outcome directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/batch"
	"github.com/claimcheck/internal/bundles"
	"github.com/claimcheck/internal/config"
	"github.com/claimcheck/internal/database"
	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/intake"
	"github.com/claimcheck/internal/reference"
	"github.com/claimcheck/internal/validation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "claimcheck: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	manager, err := config.NewManager()
	if err != nil {
		return err
	}
	if err := manager.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := manager.GetConfig()

	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, cleanup, err := buildGateway(ctx, cfg, manager, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	definitions, err := bundles.LoadDefinitions(cfg.Validation.BundlesFile, logger)
	if err != nil {
		return err
	}
	if definitions == nil {
		definitions = bundles.DefaultDefinitions()
	}
	equivalence, err := bundles.LoadEquivalenceGroups(cfg.Validation.EquivalenceFile, logger)
	if err != nil {
		return err
	}
	if equivalence == nil {
		equivalence = bundles.DefaultEquivalenceGroups()
	}

	tables := reference.DefaultCodeTables()

	orchestrator := validation.NewOrchestrator(
		gateway,
		validation.NewBundleDetector(definitions, tables, logger),
		validation.NewIntentClassifier(gateway, tables, logger),
		validation.NewModifierValidator(tables, logger),
		validation.NewUnitsValidator(gateway, tables, cfg.Validation.GlobalUnitLimit, logger),
		validation.NewLineItemMatcher(gateway, logger),
		validation.NewRateResolver(gateway, equivalence, logger),
		logger,
	)

	runner := batch.NewRunner(cfg.Batch, intake.NewParser(logger), orchestrator, logger)
	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"claims": summary.Claims,
		"passed": summary.Passed,
		"failed": summary.Failed,
	}).Info("Run complete")
	if summary.ProcessErrors > 0 {
		return fmt.Errorf("%d claims ended in process error", summary.ProcessErrors)
	}
	return nil
}

// buildGateway assembles the reference gateway stack for the configured
// backend: base store, cache tier, then circuit breaker and rate limiter.
func buildGateway(ctx context.Context, cfg *domain.Config, manager *config.Manager, logger *logrus.Logger) (reference.Gateway, func(), error) {
	var base reference.Gateway
	cleanup := func() {}

	switch cfg.Store.Backend {
	case "postgres":
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		migrator, err := database.NewMigrationRunner(
			manager.GetDatabaseConnectionString(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := migrator.Up(); err != nil {
			db.Close()
			return nil, nil, err
		}
		_ = migrator.Close()
		base = reference.NewPostgresGateway(db.Pool, logger)
		cleanup = db.Close
	case "sqlite":
		sqliteGateway, err := reference.NewSQLiteGateway(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		base = sqliteGateway
		cleanup = func() { _ = sqliteGateway.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}

	cached, err := reference.NewCachedGateway(base, cfg.Cache, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return reference.NewResilientGateway(cached, 200, logger), cleanup, nil
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		logger.SetOutput(os.Stdout)
	}
	return logger
}
