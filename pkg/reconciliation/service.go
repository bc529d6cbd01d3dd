package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mandala/approvals/pkg/eventbus"
	"github.com/mandala/approvals/pkg/events"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/otelhelper"
	"github.com/mandala/approvals/pkg/persistence"
)

var (
	// ErrEntryNotOpen indicates a resolution against an entry that is not
	// unmatched or disputed.
	ErrEntryNotOpen = errors.New("reconciliation entry is not open for resolution")

	// ErrInvalidStrategy indicates an unknown resolution strategy.
	ErrInvalidStrategy = errors.New("unknown resolution strategy")
)

// Auditor records reconciliation state transitions.
type Auditor interface {
	Record(ctx context.Context, record *models.AuditRecord)
}

// Service runs reconciliation batches and resolves discrepancies.
type Service struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	auditor     Auditor
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewService(store persistence.Persistence, publisher eventbus.EventPublisher, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{
		persistence: store,
		publisher:   publisher,
		auditor:     auditor,
		tracer:      noop.NewTracerProvider().Tracer("reconciliation"),
		logger:      logger.With("module", "reconciliation"),
	}
}

// WithTracer enables tracing of reconciliation runs.
func (s *Service) WithTracer(tracer trace.Tracer) *Service {
	if tracer != nil {
		s.tracer = tracer
	}

	return s
}

// ReconcileProviderTransactions matches one provider's internal transactions
// for a date against the external settlement feed and persists the run with
// its entries.
func (s *Service) ReconcileProviderTransactions(ctx context.Context, provider models.Provider, date string, external []*models.ExternalTransaction) (*models.DailyReconciliation, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "reconciliation.run",
		attribute.String(otelhelper.ProviderKey, string(provider)),
		attribute.String(otelhelper.ReconDateKey, date),
	)
	defer span.End()

	startedAt := time.Now().UTC()

	internal, err := s.persistence.Transactions().GetByProviderAndDate(ctx, provider, date)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	outcome := Match(internal, external)

	run := &models.DailyReconciliation{
		Date:      date,
		Provider:  provider,
		StartedAt: startedAt,
		Entries:   make([]*models.ReconciliationEntry, 0, len(internal)),
	}

	for _, pair := range outcome.Pairs {
		discrepancy := pair.Internal.Amount - pair.External.Amount

		status := models.ReconMatched
		if Disputed(discrepancy) {
			status = models.ReconDisputed
			run.Disputed++
		} else {
			run.Matched++
		}

		entry := &models.ReconciliationEntry{
			ID:                    "rec-" + uuid.NewString(),
			TransactionID:         pair.Internal.ID,
			ExternalTransactionID: pair.External.ID,
			Provider:              provider,
			InternalAmount:        pair.Internal.Amount,
			ExternalAmount:        pair.External.Amount,
			Fees:                  pair.External.Fees,
			NetAmount:             pair.External.Amount - pair.External.Fees,
			Status:                status,
			Discrepancy:           discrepancy,
			Confidence:            pair.Confidence,
			ReconciledAt:          startedAt,
			SettlementAt:          pair.External.SettlementAt,
		}
		run.Entries = append(run.Entries, entry)
	}

	for _, txn := range outcome.UnmatchedInternal {
		run.Unmatched++
		run.Entries = append(run.Entries, &models.ReconciliationEntry{
			ID:             "rec-" + uuid.NewString(),
			TransactionID:  txn.ID,
			Provider:       provider,
			InternalAmount: txn.Amount,
			Fees:           ExpectedFees(provider, txn.Amount),
			Status:         models.ReconUnmatched,
			Discrepancy:    txn.Amount,
			ReconciledAt:   startedAt,
			Notes:          "no external settlement record",
		})
	}

	for _, candidate := range outcome.UnmatchedExternal {
		run.Unmatched++
		run.Entries = append(run.Entries, &models.ReconciliationEntry{
			ID:                    "rec-" + uuid.NewString(),
			ExternalTransactionID: candidate.ID,
			Provider:              provider,
			ExternalAmount:        candidate.Amount,
			Fees:                  candidate.Fees,
			NetAmount:             candidate.Amount - candidate.Fees,
			Status:                models.ReconUnmatched,
			Discrepancy:           -candidate.Amount,
			ReconciledAt:          startedAt,
			Notes:                 "no internal transaction record",
		})
	}

	for _, entry := range run.Entries {
		run.TransactionCount++
		run.TotalAmount += entry.InternalAmount
		run.TotalFees += entry.Fees
		run.DiscrepancyTotal += entry.Discrepancy

		if err := s.persistence.Reconciliation().CreateEntry(ctx, entry); err != nil {
			return nil, err
		}
	}

	run.NetAmount = run.TotalAmount - run.TotalFees
	run.CompletedAt = time.Now().UTC()

	run.Status = "completed"
	if run.Disputed > 0 || run.Unmatched > 0 {
		run.Status = "disputed"
	}

	if err := s.persistence.Reconciliation().SaveRun(ctx, run); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &models.AuditRecord{
		ID:          "aud-" + uuid.NewString(),
		Action:      "reconciliation run completed",
		PerformedBy: models.SystemActor,
		PerformedAt: run.CompletedAt,
		EntityType:  "reconciliation_run",
		EntityID:    string(provider) + "-" + date,
		Details: map[string]any{
			"matched":   run.Matched,
			"unmatched": run.Unmatched,
			"disputed":  run.Disputed,
		},
		ChangeType: models.ChangeReconcile,
	})

	s.publish(ctx, string(provider)+"-"+date, events.ReconciliationCompleted{
		BaseEvent: events.NewBaseEvent(),
		Provider:  provider,
		Date:      date,
		Matched:   run.Matched,
		Unmatched: run.Unmatched,
		Disputed:  run.Disputed,
	})

	return run, nil
}

// ProcessDailyReconciliation reconciles every external provider for one date.
// QR and cash transactions settle internally and are never reconciled. A
// provider with no feed for the date is skipped, not failed.
func (s *Service) ProcessDailyReconciliation(ctx context.Context, date string, feeds map[models.Provider][]*models.ExternalTransaction) ([]*models.DailyReconciliation, error) {
	runs := make([]*models.DailyReconciliation, 0)

	for _, provider := range models.ExternalProviders() {
		feed, ok := feeds[provider]
		if !ok {
			s.logger.InfoContext(ctx, "No settlement feed for provider, skipping", "provider", provider, "date", date)

			continue
		}

		run, err := s.ReconcileProviderTransactions(ctx, provider, date, feed)
		if err != nil {
			return runs, fmt.Errorf("reconciling %s for %s: %w", provider, date, err)
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// ResolveDiscrepancy closes an open entry with the given strategy. The
// original entry is preserved; resolution writes a new entry referencing it.
// The adjustment amount applies only to manual_adjustment, correcting the
// external side; the accept strategies ignore it.
func (s *Service) ResolveDiscrepancy(ctx context.Context, entryID string, strategy models.ResolutionStrategy, adjustment float64, resolvedBy, notes string) (*models.ReconciliationEntry, error) {
	if !strategy.Valid() {
		return nil, ErrInvalidStrategy
	}

	original, err := s.persistence.Reconciliation().GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if original.Status != models.ReconUnmatched && original.Status != models.ReconDisputed {
		return nil, ErrEntryNotOpen
	}

	now := time.Now().UTC()

	resolved := &models.ReconciliationEntry{
		ID:                    "rec-" + uuid.NewString(),
		TransactionID:         original.TransactionID,
		ExternalTransactionID: original.ExternalTransactionID,
		Provider:              original.Provider,
		Fees:                  original.Fees,
		Status:                models.ReconResolved,
		Discrepancy:           0,
		Confidence:            original.Confidence,
		ReconciledAt:          now,
		SettlementAt:          original.SettlementAt,
		ResolvedFrom:          original.ID,
		Notes:                 notes,
	}

	switch strategy {
	case models.ResolveAcceptInternal:
		resolved.InternalAmount = original.InternalAmount
		resolved.ExternalAmount = original.InternalAmount
	case models.ResolveAcceptExternal:
		resolved.InternalAmount = original.ExternalAmount
		resolved.ExternalAmount = original.ExternalAmount
	case models.ResolveManualAdjustment:
		resolved.InternalAmount = original.InternalAmount
		resolved.ExternalAmount = original.ExternalAmount + adjustment
		resolved.Discrepancy = resolved.InternalAmount - resolved.ExternalAmount
	}

	resolved.NetAmount = resolved.ExternalAmount - resolved.Fees

	if err := s.persistence.Reconciliation().CreateEntry(ctx, resolved); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &models.AuditRecord{
		ID:            "aud-" + uuid.NewString(),
		Action:        "discrepancy resolved",
		PerformedBy:   resolvedBy,
		PerformedAt:   now,
		EntityType:    "reconciliation_entry",
		EntityID:      original.ID,
		PreviousValue: original.Status,
		NewValue:      models.ReconResolved,
		Details: map[string]any{
			"strategy":    strategy,
			"adjustment":  adjustment,
			"resolved_id": resolved.ID,
		},
		ChangeType: models.ChangeReconcile,
	})

	s.publish(ctx, original.ID, events.DiscrepancyResolved{
		BaseEvent:  events.NewBaseEvent(),
		EntryID:    original.ID,
		ResolvedID: resolved.ID,
		Strategy:   strategy,
		ResolvedBy: resolvedBy,
	})

	return resolved, nil
}

// ProcessSettlement rolls the runs between periodStart and periodEnd into a
// settlement report, carrying the previous report's balance forward.
func (s *Service) ProcessSettlement(ctx context.Context, provider models.Provider, periodStart, periodEnd time.Time, processedBy, reference string) (*models.SettlementReport, error) {
	previousBalance := 0.0

	last, err := s.persistence.Reconciliation().LastSettlement(ctx, provider)
	switch {
	case err == nil:
		previousBalance = last.FinalBalance
	case errors.Is(err, persistence.ErrSettlementNotFound):
	default:
		return nil, err
	}

	report := &models.SettlementReport{
		ID:              "set-" + uuid.NewString(),
		Provider:        provider,
		SettlementDate:  time.Now().UTC(),
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		PreviousBalance: previousBalance,
		ReferenceNumber: reference,
		ProcessedBy:     processedBy,
	}

	for day := periodStart; !day.After(periodEnd); day = day.AddDate(0, 0, 1) {
		run, err := s.persistence.Reconciliation().GetRun(ctx, provider, day.UTC().Format("2006-01-02"))
		if err != nil {
			if errors.Is(err, persistence.ErrRunNotFound) {
				continue
			}

			return nil, err
		}

		report.TotalTransactions += run.TransactionCount
		report.GrossAmount += run.TotalAmount
		report.TotalFees += run.TotalFees
		report.NetAmount += run.NetAmount
	}

	// Settlement clears the running balance.
	report.SettlementAmount = report.NetAmount + report.PreviousBalance
	report.FinalBalance = 0

	if err := s.persistence.Reconciliation().SaveSettlement(ctx, report); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &models.AuditRecord{
		ID:          "aud-" + uuid.NewString(),
		Action:      "settlement processed",
		PerformedBy: processedBy,
		PerformedAt: report.SettlementDate,
		EntityType:  "settlement_report",
		EntityID:    report.ID,
		Details: map[string]any{
			"provider":          provider,
			"settlement_amount": report.SettlementAmount,
		},
		ChangeType: models.ChangeSettle,
	})

	return report, nil
}

func (s *Service) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish reconciliation event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}
