package file

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// ReconciliationRepository stores batch runs, entries, and settlement
// reports under separate subdirectories. Entries are append-only.
type ReconciliationRepository struct {
	dir string
}

func (r *ReconciliationRepository) runsDir() string {
	return filepath.Join(r.dir, "runs")
}

func (r *ReconciliationRepository) entriesDir() string {
	return filepath.Join(r.dir, "entries")
}

func (r *ReconciliationRepository) settlementsDir() string {
	return filepath.Join(r.dir, "settlements")
}

func runID(provider models.Provider, date string) string {
	return string(provider) + "-" + date
}

func (r *ReconciliationRepository) SaveRun(ctx context.Context, run *models.DailyReconciliation) error {
	return writeDocument(r.runsDir(), runID(run.Provider, run.Date), run)
}

func (r *ReconciliationRepository) GetRun(ctx context.Context, provider models.Provider, date string) (*models.DailyReconciliation, error) {
	run := new(models.DailyReconciliation)
	if err := readDocument(r.runsDir(), runID(provider, date), run, persistence.ErrRunNotFound); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *ReconciliationRepository) CreateEntry(ctx context.Context, entry *models.ReconciliationEntry) error {
	if documentExists(r.entriesDir(), entry.ID) {
		return persistence.NewStoreError("CreateEntry", entry.ID, persistence.ErrAlreadyExists)
	}

	return writeDocument(r.entriesDir(), entry.ID, entry)
}

func (r *ReconciliationRepository) GetEntry(ctx context.Context, id string) (*models.ReconciliationEntry, error) {
	entry := new(models.ReconciliationEntry)
	if err := readDocument(r.entriesDir(), id, entry, persistence.ErrEntryNotFound); err != nil {
		return nil, err
	}

	return entry, nil
}

// ListUnresolved returns unmatched and disputed entries for the provider
// that no resolved entry references yet.
func (r *ReconciliationRepository) ListUnresolved(ctx context.Context, provider models.Provider) ([]*models.ReconciliationEntry, error) {
	entries, err := listDocuments[models.ReconciliationEntry](r.entriesDir())
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]bool)

	for _, entry := range entries {
		if entry.ResolvedFrom != "" {
			resolved[entry.ResolvedFrom] = true
		}
	}

	open := make([]*models.ReconciliationEntry, 0)

	for _, entry := range entries {
		if entry.Provider != provider || resolved[entry.ID] {
			continue
		}

		if entry.Status == models.ReconUnmatched || entry.Status == models.ReconDisputed {
			open = append(open, entry)
		}
	}

	return open, nil
}

func (r *ReconciliationRepository) SaveSettlement(ctx context.Context, report *models.SettlementReport) error {
	return writeDocument(r.settlementsDir(), report.ID, report)
}

// LastSettlement returns the most recent settlement report for the provider
// by settlement date.
func (r *ReconciliationRepository) LastSettlement(ctx context.Context, provider models.Provider) (*models.SettlementReport, error) {
	reports, err := listDocuments[models.SettlementReport](r.settlementsDir())
	if err != nil {
		return nil, err
	}

	matching := make([]*models.SettlementReport, 0)

	for _, report := range reports {
		if report.Provider == provider {
			matching = append(matching, report)
		}
	}

	if len(matching) == 0 {
		return nil, persistence.ErrSettlementNotFound
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].SettlementDate.Before(matching[j].SettlementDate)
	})

	return matching[len(matching)-1], nil
}
