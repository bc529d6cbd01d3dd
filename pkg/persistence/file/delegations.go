package file

import (
	"context"
	"time"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

type DelegationRepository struct {
	dir string
}

func (r *DelegationRepository) Create(ctx context.Context, rule *models.DelegationRule) error {
	if documentExists(r.dir, rule.ID) {
		return persistence.NewStoreError("Create", rule.ID, persistence.ErrAlreadyExists)
	}

	return writeDocument(r.dir, rule.ID, rule)
}

func (r *DelegationRepository) GetByID(ctx context.Context, id string) (*models.DelegationRule, error) {
	rule := new(models.DelegationRule)
	if err := readDocument(r.dir, id, rule, persistence.ErrDelegationNotFound); err != nil {
		return nil, err
	}

	return rule, nil
}

// ListActiveForUser returns delegations granted to the user whose window
// contains now. Amount and type constraints are checked at use time by the
// authorization path, not here.
func (r *DelegationRepository) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*models.DelegationRule, error) {
	rules, err := listDocuments[models.DelegationRule](r.dir)
	if err != nil {
		return nil, err
	}

	active := make([]*models.DelegationRule, 0)

	for _, rule := range rules {
		if rule.ToUserID == userID && rule.InWindow(now) {
			active = append(active, rule)
		}
	}

	return active, nil
}

func (r *DelegationRepository) Revoke(ctx context.Context, id string) error {
	rule, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	rule.Active = false

	return writeDocument(r.dir, rule.ID, rule)
}
