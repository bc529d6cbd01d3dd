package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/notifier"
	"github.com/mandala/approvals/pkg/persistence"
)

// highValueDelegationLimit is the amount ceiling above which only an admin
// may grant delegation authority.
const highValueDelegationLimit = 100000.0

// DelegationInput describes a standing grant of approval authority.
type DelegationInput struct {
	FromUserID   string                   `json:"from_user_id" validate:"required"`
	FromRole     models.Role              `json:"from_role"    validate:"required"`
	ToUserID     string                   `json:"to_user_id"   validate:"required"`
	ToRole       models.Role              `json:"to_role"      validate:"required"`
	StartDate    time.Time                `json:"start_date"`
	EndDate      time.Time                `json:"end_date"`
	MaxAmount    float64                  `json:"max_amount,omitempty"`
	AllowedTypes []models.TransactionType `json:"allowed_transaction_types,omitempty"`
	Reason       string                   `json:"reason,omitempty"`
	CreatedBy    string                   `json:"created_by"`
}

// DelegationManager creates and revokes standing delegation grants, distinct
// from the per-request slot delegation the engine handles.
type DelegationManager struct {
	delegations persistence.DelegationRepository
	notifier    notifier.Notifier
	auditor     Auditor
	logger      *slog.Logger
}

func NewDelegationManager(delegations persistence.DelegationRepository, notify notifier.Notifier, auditor Auditor, logger *slog.Logger) *DelegationManager {
	return &DelegationManager{
		delegations: delegations,
		notifier:    notify,
		auditor:     auditor,
		logger:      logger.With("module", "delegation"),
	}
}

// DelegateApproval creates a grant. The delegate must rank at or above the
// delegator so delegation never lowers the effective approval bar, and
// high-value grants require admin authority.
func (m *DelegationManager) DelegateApproval(ctx context.Context, input DelegationInput) (*models.DelegationRule, error) {
	if !input.FromRole.Valid() || !input.ToRole.Valid() {
		return nil, ErrInvalidDelegation
	}

	if input.ToRole.Rank() < input.FromRole.Rank() {
		return nil, ErrInvalidDelegation
	}

	if input.MaxAmount > highValueDelegationLimit && input.FromRole != models.RoleAdmin {
		return nil, ErrInvalidDelegation
	}

	now := time.Now().UTC()

	start := input.StartDate
	if start.IsZero() {
		start = now
	}

	end := input.EndDate
	if end.IsZero() {
		end = start.Add(models.DefaultDelegationWindow)
	}

	if !end.After(start) {
		return nil, ErrInvalidDelegation
	}

	rule := &models.DelegationRule{
		ID:           "del-" + uuid.NewString(),
		FromUserID:   input.FromUserID,
		FromRole:     input.FromRole,
		ToUserID:     input.ToUserID,
		ToRole:       input.ToRole,
		StartDate:    start,
		EndDate:      end,
		MaxAmount:    input.MaxAmount,
		AllowedTypes: input.AllowedTypes,
		Active:       true,
		Reason:       input.Reason,
		CreatedAt:    now,
		CreatedBy:    input.CreatedBy,
	}

	if err := m.delegations.Create(ctx, rule); err != nil {
		return nil, err
	}

	m.auditor.Record(ctx, &models.AuditRecord{
		ID:          "aud-" + uuid.NewString(),
		Action:      "delegation created",
		PerformedBy: input.CreatedBy,
		PerformedAt: now,
		EntityType:  "delegation_rule",
		EntityID:    rule.ID,
		Details: map[string]any{
			"from_user": rule.FromUserID,
			"to_user":   rule.ToUserID,
			"end_date":  rule.EndDate,
		},
		ChangeType: models.ChangeDelegate,
	})

	m.notifier.NotifyDelegationCreated(ctx, rule)

	return rule, nil
}

// RevokeDelegation deactivates a grant immediately.
func (m *DelegationManager) RevokeDelegation(ctx context.Context, id, revokedBy string) error {
	if err := m.delegations.Revoke(ctx, id); err != nil {
		return err
	}

	m.auditor.Record(ctx, &models.AuditRecord{
		ID:          "aud-" + uuid.NewString(),
		Action:      "delegation revoked",
		PerformedBy: revokedBy,
		PerformedAt: time.Now().UTC(),
		EntityType:  "delegation_rule",
		EntityID:    id,
		ChangeType:  models.ChangeDelegate,
	})

	return nil
}
