// Package escalation scans overdue approval requests and escalates them
// through configured triggers.
package escalation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/otelhelper"
	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/workflow"
)

// Service runs one escalation sweep at a time. It is driven externally, by
// the Scheduler in production and directly in tests.
type Service struct {
	persistence persistence.Persistence
	engine      *workflow.Engine
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewService(store persistence.Persistence, engine *workflow.Engine, logger *slog.Logger) *Service {
	return &Service{
		persistence: store,
		engine:      engine,
		tracer:      noop.NewTracerProvider().Tracer("escalation"),
		logger:      logger.With("module", "escalation"),
	}
}

// WithTracer enables tracing of escalation sweeps.
func (s *Service) WithTracer(tracer trace.Tracer) *Service {
	if tracer != nil {
		s.tracer = tracer
	}

	return s
}

// SweepResult summarizes one pass over the overdue requests.
type SweepResult struct {
	Scanned   int
	Escalated int
	Expired   int
	Failed    int
}

// ProcessEscalationTriggers escalates every overdue request whose first
// matching trigger fires. Requests past their global deadline expire instead.
// Failures are isolated per request so one bad aggregate never stalls the
// sweep.
func (s *Service) ProcessEscalationTriggers(ctx context.Context, now time.Time) (*SweepResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "escalation.sweep")
	defer span.End()

	overdue, err := s.persistence.ApprovalRequests().ListOverdue(ctx, now)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	triggers, err := s.persistence.EscalationTriggers().ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Scanned: len(overdue)}

	for _, request := range overdue {
		switch err := s.processRequest(ctx, request, triggers, now); {
		case err == nil:
		case err == errExpired:
			result.Expired++

			continue
		case err == errNoTrigger || err == errAlreadyEscalated:
			continue
		default:
			result.Failed++

			s.logger.ErrorContext(ctx, "Escalation failed", "request_id", request.ID, "error", err)

			continue
		}

		result.Escalated++
	}

	span.SetAttributes(
		attribute.Int("approvals.sweep.scanned", result.Scanned),
		attribute.Int("approvals.sweep.escalated", result.Escalated),
		attribute.Int("approvals.sweep.expired", result.Expired),
		attribute.Int("approvals.sweep.failed", result.Failed),
	)

	s.logger.InfoContext(ctx, "Escalation sweep completed",
		"scanned", result.Scanned, "escalated", result.Escalated,
		"expired", result.Expired, "failed", result.Failed)

	return result, nil
}

var (
	errNoTrigger        = sentinel("no trigger fired")
	errAlreadyEscalated = sentinel("already escalated for this trigger")
	errExpired          = sentinel("request expired")
)

type sentinel string

func (s sentinel) Error() string { return string(s) }

func (s *Service) processRequest(ctx context.Context, request *models.ApprovalRequest, triggers []*models.EscalationTrigger, now time.Time) error {
	if now.After(request.GlobalDeadline) {
		if _, err := s.engine.ExpireRequest(ctx, request.ID, now); err != nil {
			return err
		}

		return errExpired
	}

	for _, trigger := range triggers {
		if !trigger.Fires(request, now) {
			continue
		}

		if alreadyEscalated(request, trigger) {
			return errAlreadyEscalated
		}

		input := workflow.ActionInput{
			ActorID:          models.SystemActor,
			Action:           models.ActionEscalate,
			Comment:          trigger.Name,
			TargetLevel:      trigger.SkipToLevel,
			EscalateToRole:   trigger.EscalateToRole,
			NewDeadlineHours: trigger.NewDeadlineHours,
			TriggerID:        trigger.ID,
			Now:              now,
		}

		_, err := s.engine.ProcessApprovalAction(ctx, request.ID, input)
		if errors.Is(err, workflow.ErrInvalidEscalation) {
			// Already at the last level; the global deadline will expire it.
			return errNoTrigger
		}

		return err
	}

	return errNoTrigger
}

// alreadyEscalated guards against re-firing the same trigger at the same
// level when the new deadline is itself already overdue.
func alreadyEscalated(request *models.ApprovalRequest, trigger *models.EscalationTrigger) bool {
	for _, escalation := range request.Escalations {
		if escalation.TriggerID == trigger.ID && escalation.ToLevel == request.CurrentLevel {
			return true
		}
	}

	return false
}
