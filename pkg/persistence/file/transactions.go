package file

import (
	"context"
	"time"

	"github.com/mandala/approvals/pkg/models"
)

// TransactionRepository reads internally recorded transactions stored as one
// document per transaction. The engine only reads; the wallet service owns
// the write path.
type TransactionRepository struct {
	dir string
}

func (r *TransactionRepository) GetByProviderAndDate(ctx context.Context, provider models.Provider, date string) ([]*models.Transaction, error) {
	transactions, err := listDocuments[models.Transaction](r.dir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Transaction, 0)

	for _, txn := range transactions {
		if txn.Provider == provider && txn.CreatedAt.UTC().Format("2006-01-02") == date {
			matched = append(matched, txn)
		}
	}

	return matched, nil
}

func (r *TransactionRepository) ListUnreconciled(ctx context.Context, provider models.Provider, since time.Time) ([]*models.Transaction, error) {
	transactions, err := listDocuments[models.Transaction](r.dir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Transaction, 0)

	for _, txn := range transactions {
		if txn.Provider == provider && txn.CreatedAt.After(since) {
			matched = append(matched, txn)
		}
	}

	return matched, nil
}

// UserHistory derives the requester's recent track record from stored
// transactions. Metadata carries the terminal approval outcome when one was
// recorded.
func (r *TransactionRepository) UserHistory(ctx context.Context, userID string, since time.Time) (*models.UserHistory, error) {
	transactions, err := listDocuments[models.Transaction](r.dir)
	if err != nil {
		return nil, err
	}

	history := &models.UserHistory{}

	for _, txn := range transactions {
		if txn.UserID != userID || txn.CreatedAt.Before(since) {
			continue
		}

		switch txn.Metadata["approval_outcome"] {
		case "approved":
			history.SuccessfulTransactions++
		case "rejected":
			history.RejectedTransactions++
		}
	}

	return history, nil
}
