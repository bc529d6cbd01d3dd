// Package audit records state transitions and derives metrics and compliance
// reports from the audit log.
package audit

import (
	"context"
	"log/slog"

	"github.com/mandala/approvals/pkg/persistence"

	"github.com/mandala/approvals/pkg/models"
)

// Recorder appends audit records to durable storage. A failed append is
// logged at error level; audit loss must be loud but never rolls back the
// state change it describes.
type Recorder struct {
	repo   persistence.AuditRepository
	logger *slog.Logger
}

func NewRecorder(repo persistence.AuditRepository, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger.With("module", "audit"),
	}
}

func (r *Recorder) Record(ctx context.Context, record *models.AuditRecord) {
	if record == nil {
		return
	}

	if err := r.repo.Append(ctx, record); err != nil {
		r.logger.ErrorContext(ctx, "Failed to append audit record",
			"record_id", record.ID, "entity_id", record.EntityID, "error", err)
	}
}

// List exposes filtered audit queries for the API layer.
func (r *Recorder) List(ctx context.Context, query persistence.AuditQuery) ([]*models.AuditRecord, error) {
	return r.repo.List(ctx, query)
}
