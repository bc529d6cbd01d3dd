package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCadence runs the sweep every five minutes.
const DefaultCadence = "*/5 * * * *"

// Scheduler drives the escalation service on a cron cadence. Overlapping
// sweeps are skipped rather than queued.
type Scheduler struct {
	service *Service
	cadence string
	cron    *cron.Cron
	logger  *slog.Logger
}

func NewScheduler(service *Service, cadence string, logger *slog.Logger) *Scheduler {
	if cadence == "" {
		cadence = DefaultCadence
	}

	return &Scheduler{
		service: service,
		cadence: cadence,
		logger:  logger.With("module", "escalation_scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.cadence, func() {
		if _, err := s.service.ProcessEscalationTriggers(ctx, time.Now().UTC()); err != nil {
			s.logger.ErrorContext(ctx, "Escalation sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Escalation scheduler started", "cadence", s.cadence)

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}
}
