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

type DelegationRepository struct {
	db *sql.DB
}

func (r *DelegationRepository) Create(ctx context.Context, rule *models.DelegationRule) error {
	document, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal delegation %s: %w", rule.ID, err)
	}

	query := `
		INSERT INTO delegations (id, to_user_id, start_date, end_date, active, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.ToUserID, rule.StartDate, rule.EndDate, rule.Active, document)
	if err != nil {
		return fmt.Errorf("failed to create delegation %s: %w", rule.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if inserted == 0 {
		return persistence.NewStoreError("Create", rule.ID, persistence.ErrAlreadyExists)
	}

	return nil
}

func (r *DelegationRepository) GetByID(ctx context.Context, id string) (*models.DelegationRule, error) {
	rule := new(models.DelegationRule)

	err := getDocument(ctx, r.db,
		"SELECT document FROM delegations WHERE id = $1",
		rule, persistence.ErrDelegationNotFound, id)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// ListActiveForUser returns delegations granted to the user whose window
// contains now. Amount and type constraints are checked at use time by the
// authorization path, not here.
func (r *DelegationRepository) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*models.DelegationRule, error) {
	query := `
		SELECT document FROM delegations
		WHERE to_user_id = $1 AND active AND start_date <= $2 AND end_date >= $2
		ORDER BY id
	`

	return queryDocuments[models.DelegationRule](ctx, r.db, query, userID, now)
}

// Revoke flips the grant inactive in both the column and the stored document.
func (r *DelegationRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE delegations
		SET active = FALSE, document = jsonb_set(document, '{active}', 'false'::jsonb)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke delegation %s: %w", id, err)
	}

	revoked, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if revoked == 0 {
		return persistence.NewStoreError("Revoke", id, persistence.ErrDelegationNotFound)
	}

	return nil
}
