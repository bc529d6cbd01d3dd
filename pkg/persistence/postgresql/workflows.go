package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

type WorkflowRepository struct {
	db *sql.DB
}

// ListActive returns active workflows sorted by descending priority, the
// order the matcher consumes them in.
func (r *WorkflowRepository) ListActive(ctx context.Context) ([]*models.ApprovalWorkflow, error) {
	query := `
		SELECT document FROM workflows
		WHERE active
		ORDER BY priority DESC, id
	`

	return queryDocuments[models.ApprovalWorkflow](ctx, r.db, query)
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error) {
	workflow := new(models.ApprovalWorkflow)

	err := getDocument(ctx, r.db,
		"SELECT document FROM workflows WHERE id = $1",
		workflow, persistence.ErrWorkflowNotFound, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.ApprovalWorkflow) error {
	document, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (id, active, priority, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			priority = EXCLUDED.priority,
			document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query, workflow.ID, workflow.Active, workflow.Priority, document)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted == 0 {
		return persistence.NewStoreError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
