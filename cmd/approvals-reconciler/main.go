// Package main provides the reconciliation worker that matches internal
// transactions against provider settlement feeds.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/mandala/approvals/pkg/audit"
	"github.com/mandala/approvals/pkg/cmd"
	"github.com/mandala/approvals/pkg/log"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/otelhelper"
	"github.com/mandala/approvals/pkg/reconciliation"
)

// defaultCadence runs daily reconciliation at 06:00, after providers publish
// the previous day's settlement feeds.
const defaultCadence = "0 6 * * *"

func main() {
	command := &cli.Command{
		Name:                  "approvals-reconciler",
		Usage:                 "Start the reconciliation worker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "feeds-path",
				Usage:    "Directory holding provider settlement feeds (<provider>-<date>.json)",
				Required: true,
				Sources:  cli.EnvVars("FEEDS_PATH"),
			},
			&cli.StringFlag{
				Name:    "date",
				Usage:   "Run once for this date (YYYY-MM-DD) and exit",
				Sources: cli.EnvVars("RECONCILIATION_DATE"),
			},
			&cli.StringFlag{
				Name:    "cadence",
				Usage:   "Cron expression for the daily run",
				Value:   defaultCadence,
				Sources: cli.EnvVars("RECONCILIATION_CADENCE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("approvals-reconciler")

	logger.InfoContext(ctx, "Initializing reconciliation worker")

	tracer, err := otelhelper.NewTracer(ctx, "approvals-reconciler")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), "reconciler", logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	recorder := audit.NewRecorder(persistence.Audit(), logger)
	service := reconciliation.NewService(persistence, eventBus, recorder, logger).WithTracer(tracer)

	feedsPath := command.String("feeds-path")

	if date := command.String("date"); date != "" {
		return reconcileDate(ctx, service, logger, feedsPath, date)
	}

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err = scheduler.AddFunc(command.String("cadence"), func() {
		yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
		if err := reconcileDate(ctx, service, logger, feedsPath, yesterday); err != nil {
			logger.ErrorContext(ctx, "Daily reconciliation failed", "date", yesterday, "error", err)
		}
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	logger.InfoContext(ctx, "Reconciliation scheduler started", "cadence", command.String("cadence"))

	<-runCtx.Done()

	logger.Info("Shutting down reconciliation worker")
	<-scheduler.Stop().Done()

	return nil
}

func reconcileDate(ctx context.Context, service *reconciliation.Service, logger *slog.Logger, feedsPath, date string) error {
	feeds, err := loadFeeds(feedsPath, date)
	if err != nil {
		return err
	}

	runs, err := service.ProcessDailyReconciliation(ctx, date, feeds)
	if err != nil {
		return err
	}

	for _, run := range runs {
		logger.InfoContext(ctx, "Reconciliation run completed",
			"provider", run.Provider, "date", run.Date, "status", run.Status,
			"matched", run.Matched, "unmatched", run.Unmatched, "disputed", run.Disputed)
	}

	return nil
}

// loadFeeds reads <provider>-<date>.json for each external provider. A
// missing feed file means the provider has not published yet; it is skipped.
func loadFeeds(feedsPath, date string) (map[models.Provider][]*models.ExternalTransaction, error) {
	feeds := make(map[models.Provider][]*models.ExternalTransaction)

	for _, provider := range models.ExternalProviders() {
		path := filepath.Join(feedsPath, string(provider)+"-"+date+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, err
		}

		var feed []*models.ExternalTransaction
		if err := json.Unmarshal(data, &feed); err != nil {
			return nil, err
		}

		feeds[provider] = feed
	}

	return feeds, nil
}
