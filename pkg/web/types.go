// Package web provides HTTP request and response types for the approvals API.
package web

import (
	"time"

	"github.com/mandala/approvals/pkg/models"
)

// CreateApprovalRequestBody submits a transaction for approval.
type CreateApprovalRequestBody struct {
	Transaction   models.Transaction `json:"transaction"    validate:"required"`
	RequesterID   string             `json:"requester_id"   validate:"required"`
	RequesterRole models.Role        `json:"requester_role" validate:"required"`
	VenueType     string             `json:"venue_type,omitempty"`
	UserTier      string             `json:"user_tier,omitempty"`
}

// BulkActionBody applies one action to several requests.
type BulkActionBody struct {
	RequestIDs []string          `json:"request_ids" validate:"required,min=1"`
	ActorID    string            `json:"actor_id"    validate:"required"`
	ActorRole  models.Role       `json:"actor_role"  validate:"required"`
	Action     models.ActionType `json:"action"      validate:"required"`
	Comment    string            `json:"comment,omitempty"`
}

// ReconcileBody runs one provider's reconciliation for a date.
type ReconcileBody struct {
	Provider models.Provider               `json:"provider" validate:"required"`
	Date     string                        `json:"date"     validate:"required,datetime=2006-01-02"`
	External []*models.ExternalTransaction `json:"external_transactions"`
}

// DailyReconcileBody runs all external providers for a date.
type DailyReconcileBody struct {
	Date  string                                         `json:"date" validate:"required,datetime=2006-01-02"`
	Feeds map[models.Provider][]*models.ExternalTransaction `json:"feeds"`
}

// ResolveBody settles an open reconciliation entry. Adjustment is the amount
// added to the external side under manual_adjustment.
type ResolveBody struct {
	Strategy   models.ResolutionStrategy `json:"strategy"    validate:"required"`
	Adjustment float64                   `json:"adjustment,omitempty"`
	ResolvedBy string                    `json:"resolved_by" validate:"required"`
	Notes      string                    `json:"notes,omitempty"`
}

// SettlementBody rolls reconciled runs into a settlement report.
type SettlementBody struct {
	Provider    models.Provider `json:"provider"     validate:"required"`
	PeriodStart time.Time       `json:"period_start" validate:"required"`
	PeriodEnd   time.Time       `json:"period_end"   validate:"required"`
	ProcessedBy string          `json:"processed_by" validate:"required"`
	Reference   string          `json:"reference,omitempty"`
}
