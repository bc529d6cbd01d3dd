package file

import (
	"context"
	"sort"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// AuditRepository appends audit records as individual documents. Records are
// never rewritten or removed.
type AuditRepository struct {
	dir string
}

func (r *AuditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	if documentExists(r.dir, record.ID) {
		return persistence.NewStoreError("Append", record.ID, persistence.ErrAlreadyExists)
	}

	return writeDocument(r.dir, record.ID, record)
}

func (r *AuditRepository) List(ctx context.Context, query persistence.AuditQuery) ([]*models.AuditRecord, error) {
	records, err := listDocuments[models.AuditRecord](r.dir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.AuditRecord, 0)

	for _, record := range records {
		if !query.Start.IsZero() && record.PerformedAt.Before(query.Start) {
			continue
		}

		if !query.End.IsZero() && record.PerformedAt.After(query.End) {
			continue
		}

		if query.EntityID != "" && record.EntityID != query.EntityID {
			continue
		}

		if query.ActorID != "" && record.PerformedBy != query.ActorID {
			continue
		}

		if query.ChangeType != "" && record.ChangeType != query.ChangeType {
			continue
		}

		matched = append(matched, record)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PerformedAt.Before(matched[j].PerformedAt)
	})

	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}

	return matched, nil
}
