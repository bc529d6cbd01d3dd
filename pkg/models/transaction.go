package models

import "time"

// TransactionType classifies the monetary action under approval.
type TransactionType string

const (
	TransactionPayment    TransactionType = "payment"
	TransactionTransfer   TransactionType = "transfer"
	TransactionRefund     TransactionType = "refund"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Provider identifies an external payment provider.
type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderOxxoPay  Provider = "oxxo_pay"
	ProviderApplePay Provider = "apple_pay"
	ProviderSPEI     Provider = "spei"
	ProviderQRCode   Provider = "qr_code"
	ProviderCash     Provider = "cash"
)

// ExternalProviders lists the providers that settle through an external feed
// and therefore participate in reconciliation. QR and cash settle internally.
func ExternalProviders() []Provider {
	return []Provider{ProviderStripe, ProviderOxxoPay, ProviderApplePay, ProviderSPEI}
}

// Transaction is an internally recorded wallet transaction.
type Transaction struct {
	ID        string            `json:"id"         validate:"required"`
	Type      TransactionType   `json:"type"       validate:"required"`
	Amount    float64           `json:"amount"     validate:"gt=0"`
	Currency  string            `json:"currency"`
	Provider  Provider          `json:"provider"`
	VenueID   string            `json:"venue_id,omitempty"`
	UserID    string            `json:"user_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// CorrelationID returns the provider-specific correlation id recorded on the
// internal transaction, empty when none was captured.
func (t *Transaction) CorrelationID() string {
	if t.Metadata == nil {
		return ""
	}

	switch t.Provider {
	case ProviderStripe:
		return t.Metadata["stripe_payment_intent_id"]
	case ProviderOxxoPay:
		return t.Metadata["oxxo_reference"]
	case ProviderSPEI:
		return t.Metadata["spei_reference"]
	default:
		return ""
	}
}

// ExternalTransaction is one settled record from a provider's settlement feed.
type ExternalTransaction struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	Fees          float64   `json:"fees"`
	Currency      string    `json:"currency"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
	SettlementAt  time.Time `json:"settlement_at,omitempty"`
}

// TransactionContext carries the attributes a condition or rule can inspect
// about a candidate transaction. Now is injected so evaluation stays pure.
type TransactionContext struct {
	Transaction   *Transaction
	RequesterID   string
	RequesterRole Role
	VenueType     string
	UserTier      string
	History       *UserHistory
	Now           time.Time
}

// UserHistory summarizes a requester's recent approval outcomes.
type UserHistory struct {
	SuccessfulTransactions int `json:"successful_transactions"`
	RejectedTransactions   int `json:"rejected_transactions"`
	PeriodDays             int `json:"period_days"`
}
