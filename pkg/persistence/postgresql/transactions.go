package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mandala/approvals/pkg/models"
)

// TransactionRepository reads internally recorded transactions. The engine
// only reads; the wallet service owns the write path.
type TransactionRepository struct {
	db *sql.DB
}

func (r *TransactionRepository) GetByProviderAndDate(ctx context.Context, provider models.Provider, date string) ([]*models.Transaction, error) {
	dayStart, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid reconciliation date %q: %w", date, err)
	}

	query := `
		SELECT document FROM transactions
		WHERE provider = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
	`

	return queryDocuments[models.Transaction](ctx, r.db, query,
		provider, dayStart, dayStart.AddDate(0, 0, 1))
}

func (r *TransactionRepository) ListUnreconciled(ctx context.Context, provider models.Provider, since time.Time) ([]*models.Transaction, error) {
	query := `
		SELECT document FROM transactions
		WHERE provider = $1 AND created_at > $2
		ORDER BY created_at, id
	`

	return queryDocuments[models.Transaction](ctx, r.db, query, provider, since)
}

// UserHistory derives the requester's recent track record from stored
// transactions. Metadata carries the terminal approval outcome when one was
// recorded.
func (r *TransactionRepository) UserHistory(ctx context.Context, userID string, since time.Time) (*models.UserHistory, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE document->'metadata'->>'approval_outcome' = 'approved'),
			COUNT(*) FILTER (WHERE document->'metadata'->>'approval_outcome' = 'rejected')
		FROM transactions
		WHERE user_id = $1 AND created_at >= $2
	`

	history := &models.UserHistory{}

	err := r.db.QueryRowContext(ctx, query, userID, since).
		Scan(&history.SuccessfulTransactions, &history.RejectedTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to query user history for %s: %w", userID, err)
	}

	return history, nil
}
