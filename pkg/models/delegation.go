package models

import "time"

// DelegationRule is a time-bounded grant of approval authority from one user
// to another. Amount and type constraints are re-checked at use time against
// the request being authorized, not at grant time.
type DelegationRule struct {
	ID           string            `json:"id"`
	FromUserID   string            `json:"from_user_id" validate:"required"`
	FromRole     Role              `json:"from_role"    validate:"required"`
	ToUserID     string            `json:"to_user_id"   validate:"required"`
	ToRole       Role              `json:"to_role"      validate:"required"`
	StartDate    time.Time         `json:"start_date"`
	EndDate      time.Time         `json:"end_date"`
	MaxAmount    float64           `json:"max_amount,omitempty"`
	AllowedTypes []TransactionType `json:"allowed_transaction_types,omitempty"`
	Active       bool              `json:"active"`
	Reason       string            `json:"reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CreatedBy    string            `json:"created_by"`
}

// DefaultDelegationWindow is applied when a grant omits its end date.
const DefaultDelegationWindow = 7 * 24 * time.Hour

// InWindow reports whether the grant is active at the given instant.
func (d *DelegationRule) InWindow(now time.Time) bool {
	return d.Active && !now.Before(d.StartDate) && !now.After(d.EndDate)
}

// AppliesTo re-validates the grant's constraints against a concrete request.
// An active grant still fails authorization when any constraint mismatches.
func (d *DelegationRule) AppliesTo(request *ApprovalRequest, now time.Time) bool {
	if !d.InWindow(now) {
		return false
	}

	if d.MaxAmount > 0 && request.Amount > d.MaxAmount {
		return false
	}

	if len(d.AllowedTypes) > 0 {
		allowed := false

		for _, t := range d.AllowedTypes {
			if t == request.Type {
				allowed = true

				break
			}
		}

		if !allowed {
			return false
		}
	}

	return true
}
