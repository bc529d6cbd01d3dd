package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// AuditRepository appends audit records as immutable rows. Records are never
// rewritten or removed.
type AuditRepository struct {
	db *sql.DB
}

func (r *AuditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record %s: %w", record.ID, err)
	}

	query := `
		INSERT INTO audit_records (id, entity_id, performed_by, change_type, performed_at, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		record.ID, record.EntityID, record.PerformedBy, record.ChangeType, record.PerformedAt, document)
	if err != nil {
		return fmt.Errorf("failed to append audit record %s: %w", record.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if inserted == 0 {
		return persistence.NewStoreError("Append", record.ID, persistence.ErrAlreadyExists)
	}

	return nil
}

func (r *AuditRepository) List(ctx context.Context, query persistence.AuditQuery) ([]*models.AuditRecord, error) {
	sqlQuery := "SELECT document FROM audit_records"
	args := make([]any, 0)
	where := ""

	and := func(clause string) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	if !query.Start.IsZero() {
		args = append(args, query.Start)
		and("performed_at >= $" + strconv.Itoa(len(args)))
	}

	if !query.End.IsZero() {
		args = append(args, query.End)
		and("performed_at <= $" + strconv.Itoa(len(args)))
	}

	if query.EntityID != "" {
		args = append(args, query.EntityID)
		and("entity_id = $" + strconv.Itoa(len(args)))
	}

	if query.ActorID != "" {
		args = append(args, query.ActorID)
		and("performed_by = $" + strconv.Itoa(len(args)))
	}

	if query.ChangeType != "" {
		args = append(args, query.ChangeType)
		and("change_type = $" + strconv.Itoa(len(args)))
	}

	sqlQuery += where + " ORDER BY performed_at ASC, id"

	if query.Limit > 0 {
		args = append(args, query.Limit)
		sqlQuery += " LIMIT $" + strconv.Itoa(len(args))
	}

	return queryDocuments[models.AuditRecord](ctx, r.db, sqlQuery, args...)
}
