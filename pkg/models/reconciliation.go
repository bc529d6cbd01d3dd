package models

import "time"

// ReconciliationStatus classifies the outcome of pairing one internal
// transaction with an external settlement record.
type ReconciliationStatus string

const (
	ReconMatched   ReconciliationStatus = "matched"
	ReconUnmatched ReconciliationStatus = "unmatched"
	ReconDisputed  ReconciliationStatus = "disputed"
	ReconResolved  ReconciliationStatus = "resolved"
)

// ResolutionStrategy selects how a disputed or unmatched entry is settled by
// a human operator.
type ResolutionStrategy string

const (
	ResolveAcceptInternal   ResolutionStrategy = "accept_internal"
	ResolveAcceptExternal   ResolutionStrategy = "accept_external"
	ResolveManualAdjustment ResolutionStrategy = "manual_adjustment"
)

// Valid reports whether the strategy is one of the known strategies.
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case ResolveAcceptInternal, ResolveAcceptExternal, ResolveManualAdjustment:
		return true
	default:
		return false
	}
}

// ReconciliationEntry is the pairing result for one internal transaction.
// Entries are never deleted; resolution produces a new resolved entry and
// preserves the original for audit.
type ReconciliationEntry struct {
	ID                    string               `json:"id"`
	TransactionID         string               `json:"transaction_id"`
	ExternalTransactionID string               `json:"external_transaction_id,omitempty"`
	Provider              Provider             `json:"provider"`
	InternalAmount        float64              `json:"internal_amount"`
	ExternalAmount        float64              `json:"external_amount"`
	Fees                  float64              `json:"fees"`
	NetAmount             float64              `json:"net_amount"`
	Status                ReconciliationStatus `json:"status"`
	Discrepancy           float64              `json:"discrepancy"`
	Confidence            float64              `json:"confidence,omitempty"`
	ReconciledAt          time.Time            `json:"reconciled_at"`
	SettlementAt          time.Time            `json:"settlement_at,omitempty"`
	ResolvedFrom          string               `json:"resolved_from,omitempty"`
	Notes                 string               `json:"notes,omitempty"`
}

// DailyReconciliation is the result of one (provider, date) batch run.
type DailyReconciliation struct {
	Date             string                 `json:"date"` // YYYY-MM-DD
	Provider         Provider               `json:"provider"`
	TransactionCount int                    `json:"transaction_count"`
	TotalAmount      float64                `json:"total_amount"`
	TotalFees        float64                `json:"total_fees"`
	NetAmount        float64                `json:"net_amount"`
	Matched          int                    `json:"matched_transactions"`
	Unmatched        int                    `json:"unmatched_transactions"`
	Disputed         int                    `json:"disputed_transactions"`
	DiscrepancyTotal float64                `json:"discrepancy_amount"`
	Status           string                 `json:"status"` // completed or disputed
	StartedAt        time.Time              `json:"started_at"`
	CompletedAt      time.Time              `json:"completed_at"`
	Entries          []*ReconciliationEntry `json:"entries"`
}

// SettlementReport summarizes one provider settlement against the running
// balance.
type SettlementReport struct {
	ID                string    `json:"id"`
	Provider          Provider  `json:"provider"`
	SettlementDate    time.Time `json:"settlement_date"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
	TotalTransactions int       `json:"total_transactions"`
	GrossAmount       float64   `json:"gross_amount"`
	TotalFees         float64   `json:"total_fees"`
	NetAmount         float64   `json:"net_amount"`
	PreviousBalance   float64   `json:"previous_balance"`
	SettlementAmount  float64   `json:"settlement_amount"`
	FinalBalance      float64   `json:"final_balance"`
	ReferenceNumber   string    `json:"reference_number,omitempty"`
	ProcessedBy       string    `json:"processed_by"`
}
