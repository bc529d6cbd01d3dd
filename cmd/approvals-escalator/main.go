// Package main provides the escalation worker that sweeps overdue approval
// requests on a schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/mandala/approvals/pkg/audit"
	"github.com/mandala/approvals/pkg/automation"
	"github.com/mandala/approvals/pkg/cmd"
	"github.com/mandala/approvals/pkg/escalation"
	"github.com/mandala/approvals/pkg/log"
	"github.com/mandala/approvals/pkg/notifier"
	"github.com/mandala/approvals/pkg/otelhelper"
	"github.com/mandala/approvals/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "approvals-escalator",
		Usage:                 "Start the escalation worker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "cache-url",
				Usage:   "Redis URL for workflow and rule caching (optional)",
				Sources: cli.EnvVars("CACHE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "cadence",
				Usage:   "Cron expression for the escalation sweep",
				Value:   escalation.DefaultCadence,
				Sources: cli.EnvVars("ESCALATION_CADENCE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("approvals-escalator")

			logger.InfoContext(ctx, "Initializing escalation worker")

			tracer, err := otelhelper.NewTracer(ctx, "approvals-escalator")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			persistence := cmd.NewCachedPersistence(store, command.String("cache-url"), logger)

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "escalator", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			recorder := audit.NewRecorder(persistence.Audit(), logger)
			notify := notifier.NewEventBusNotifier(eventBus, logger)
			matcher := workflow.NewMatcher(persistence.Workflows(), logger)
			automationEngine := automation.NewEngine(persistence.AutomationRules(), logger)
			engine := workflow.NewEngine(persistence, matcher, automationEngine, notify, recorder, logger)

			service := escalation.NewService(persistence, engine, logger).WithTracer(tracer)
			scheduler := escalation.NewScheduler(service, command.String("cadence"), logger)

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := scheduler.Start(runCtx); err != nil {
				return err
			}

			<-runCtx.Done()

			logger.Info("Shutting down escalation worker")
			scheduler.Stop()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
