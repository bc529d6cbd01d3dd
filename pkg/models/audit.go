package models

import "time"

// ChangeType classifies an audit record for filtering and reporting.
type ChangeType string

const (
	ChangeCreate    ChangeType = "create"
	ChangeUpdate    ChangeType = "update"
	ChangeApprove   ChangeType = "approve"
	ChangeReject    ChangeType = "reject"
	ChangeEscalate  ChangeType = "escalate"
	ChangeDelegate  ChangeType = "delegate"
	ChangeReconcile ChangeType = "reconcile"
	ChangeSettle    ChangeType = "settle"
)

// AuditRecord is an immutable fact about one state transition. Records are
// append-only; approval and reconciliation state must remain reconstructable
// from the audit log plus the aggregate snapshot.
type AuditRecord struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	PerformedBy   string         `json:"performed_by"`
	PerformedAt   time.Time      `json:"performed_at"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	Details       map[string]any `json:"details,omitempty"`
	PreviousValue any            `json:"previous_value,omitempty"`
	NewValue      any            `json:"new_value,omitempty"`
	ChangeType    ChangeType     `json:"change_type"`
}

// ApprovalMetrics aggregates audit-derived statistics over a period.
type ApprovalMetrics struct {
	TotalRequests       int                `json:"total_requests"`
	PendingRequests     int                `json:"pending_requests"`
	ApprovedRequests    int                `json:"approved_requests"`
	RejectedRequests    int                `json:"rejected_requests"`
	ExpiredRequests     int                `json:"expired_requests"`
	EscalatedRequests   int                `json:"escalated_requests"`
	AverageApprovalTime time.Duration      `json:"average_approval_time"`
	AverageTimePerLevel map[int]time.Duration `json:"average_time_per_level"`
	ApprovalsByRole     map[Role]int       `json:"approvals_by_role"`
	ApprovalsByUser     map[string]int     `json:"approvals_by_user"`
	TimeoutRate         float64            `json:"timeout_rate"`
	EscalationRate      float64            `json:"escalation_rate"`
	DelegationRate      float64            `json:"delegation_rate"`
}

// ComplianceViolation is one policy breach found while scanning the audit log.
type ComplianceViolation struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	RequestIDs  []string `json:"affected_requests"`
}

// ComplianceReport summarizes approval activity and violations for a period.
type ComplianceReport struct {
	ReportID    string                 `json:"report_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	GeneratedBy string                 `json:"generated_by"`
	PeriodStart time.Time              `json:"period_start"`
	PeriodEnd   time.Time              `json:"period_end"`
	TotalActions int                   `json:"total_actions"`
	UniqueActors int                   `json:"unique_actors"`
	Violations  []*ComplianceViolation `json:"violations"`
}
