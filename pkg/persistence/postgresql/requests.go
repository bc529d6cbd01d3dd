package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// RequestRepository stores approval requests with the version column backing
// the optimistic lock. The compare-and-swap happens in a single UPDATE, so
// concurrent writers across processes are serialized by the database.
type RequestRepository struct {
	db *sql.DB
}

func (r *RequestRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	request.Version = 1

	document, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request %s: %w", request.ID, err)
	}

	query := `
		INSERT INTO approval_requests (id, status, submitted_at, deadline, version, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		request.ID, request.Status, request.SubmittedAt, request.Deadline, request.Version, document)
	if err != nil {
		return fmt.Errorf("failed to create request %s: %w", request.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if inserted == 0 {
		return persistence.NewStoreError("Create", request.ID, persistence.ErrAlreadyExists)
	}

	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	request := new(models.ApprovalRequest)

	err := getDocument(ctx, r.db,
		"SELECT document FROM approval_requests WHERE id = $1",
		request, persistence.ErrRequestNotFound, id)
	if err != nil {
		return nil, err
	}

	return request, nil
}

// Update persists the request only when the caller's version matches the
// stored version, then bumps it. Stale writers get ErrVersionConflict.
func (r *RequestRepository) Update(ctx context.Context, request *models.ApprovalRequest) error {
	expected := request.Version
	request.Version = expected + 1

	document, err := json.Marshal(request)
	if err != nil {
		request.Version = expected

		return fmt.Errorf("failed to marshal request %s: %w", request.ID, err)
	}

	query := `
		UPDATE approval_requests
		SET status = $2, submitted_at = $3, deadline = $4, version = $5, document = $6
		WHERE id = $1 AND version = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		request.ID, request.Status, request.SubmittedAt, request.Deadline, request.Version, document, expected)
	if err != nil {
		request.Version = expected

		return fmt.Errorf("failed to update request %s: %w", request.ID, err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		request.Version = expected

		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if updated == 0 {
		request.Version = expected

		var exists bool
		if err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM approval_requests WHERE id = $1)", request.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check request %s: %w", request.ID, err)
		}

		if !exists {
			return persistence.NewStoreError("Update", request.ID, persistence.ErrRequestNotFound)
		}

		return persistence.NewStoreError("Update", request.ID, persistence.ErrVersionConflict)
	}

	return nil
}

func (r *RequestRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT document FROM approval_requests
		WHERE deadline < $1 AND status NOT IN ($2, $3, $4, $5)
		ORDER BY id
	`

	return queryDocuments[models.ApprovalRequest](ctx, r.db, query, now,
		models.StatusApproved, models.StatusRejected, models.StatusExpired, models.StatusCancelled)
}

// ListActive returns every request not yet in a terminal status.
func (r *RequestRepository) ListActive(ctx context.Context) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT document FROM approval_requests
		WHERE status NOT IN ($1, $2, $3, $4)
		ORDER BY id
	`

	return queryDocuments[models.ApprovalRequest](ctx, r.db, query,
		models.StatusApproved, models.StatusRejected, models.StatusExpired, models.StatusCancelled)
}

func (r *RequestRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT document FROM approval_requests
		WHERE submitted_at >= $1 AND submitted_at <= $2
		ORDER BY id
	`

	return queryDocuments[models.ApprovalRequest](ctx, r.db, query, start, end)
}
