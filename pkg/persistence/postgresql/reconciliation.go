package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// ReconciliationRepository stores batch runs, entries, and settlement
// reports. Entries are append-only; resolution creates a new entry
// referencing the original via resolved_from.
type ReconciliationRepository struct {
	db *sql.DB
}

func (r *ReconciliationRepository) SaveRun(ctx context.Context, run *models.DailyReconciliation) error {
	document, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s/%s: %w", run.Provider, run.Date, err)
	}

	query := `
		INSERT INTO reconciliation_runs (provider, date, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, date) DO UPDATE SET document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query, run.Provider, run.Date, document)
	if err != nil {
		return fmt.Errorf("failed to save run %s/%s: %w", run.Provider, run.Date, err)
	}

	return nil
}

func (r *ReconciliationRepository) GetRun(ctx context.Context, provider models.Provider, date string) (*models.DailyReconciliation, error) {
	run := new(models.DailyReconciliation)

	err := getDocument(ctx, r.db,
		"SELECT document FROM reconciliation_runs WHERE provider = $1 AND date = $2",
		run, persistence.ErrRunNotFound, provider, date)
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (r *ReconciliationRepository) CreateEntry(ctx context.Context, entry *models.ReconciliationEntry) error {
	document, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry %s: %w", entry.ID, err)
	}

	query := `
		INSERT INTO reconciliation_entries (id, provider, status, resolved_from, document)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Provider, entry.Status, entry.ResolvedFrom, document)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", entry.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if inserted == 0 {
		return persistence.NewStoreError("CreateEntry", entry.ID, persistence.ErrAlreadyExists)
	}

	return nil
}

func (r *ReconciliationRepository) GetEntry(ctx context.Context, id string) (*models.ReconciliationEntry, error) {
	entry := new(models.ReconciliationEntry)

	err := getDocument(ctx, r.db,
		"SELECT document FROM reconciliation_entries WHERE id = $1",
		entry, persistence.ErrEntryNotFound, id)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListUnresolved returns unmatched and disputed entries for the provider
// that no resolved entry references yet.
func (r *ReconciliationRepository) ListUnresolved(ctx context.Context, provider models.Provider) ([]*models.ReconciliationEntry, error) {
	query := `
		SELECT document FROM reconciliation_entries e
		WHERE e.provider = $1
		  AND e.status IN ($2, $3)
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliation_entries resolved
			WHERE resolved.resolved_from = e.id
		  )
		ORDER BY e.id
	`

	return queryDocuments[models.ReconciliationEntry](ctx, r.db, query,
		provider, models.ReconUnmatched, models.ReconDisputed)
}

func (r *ReconciliationRepository) SaveSettlement(ctx context.Context, report *models.SettlementReport) error {
	document, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement %s: %w", report.ID, err)
	}

	query := `
		INSERT INTO settlement_reports (id, provider, settlement_date, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			settlement_date = EXCLUDED.settlement_date,
			document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query, report.ID, report.Provider, report.SettlementDate, document)
	if err != nil {
		return fmt.Errorf("failed to save settlement %s: %w", report.ID, err)
	}

	return nil
}

// LastSettlement returns the most recent settlement report for the provider
// by settlement date.
func (r *ReconciliationRepository) LastSettlement(ctx context.Context, provider models.Provider) (*models.SettlementReport, error) {
	report := new(models.SettlementReport)

	err := getDocument(ctx, r.db, `
		SELECT document FROM settlement_reports
		WHERE provider = $1
		ORDER BY settlement_date DESC
		LIMIT 1
	`, report, persistence.ErrSettlementNotFound, provider)
	if err != nil {
		return nil, err
	}

	return report, nil
}
