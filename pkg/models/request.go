package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	StatusPending    ApprovalStatus = "pending"
	StatusInProgress ApprovalStatus = "in_progress"
	StatusApproved   ApprovalStatus = "approved"
	StatusRejected   ApprovalStatus = "rejected"
	StatusExpired    ApprovalStatus = "expired"
	StatusEscalated  ApprovalStatus = "escalated"
	StatusOnHold     ApprovalStatus = "on_hold"
	StatusCancelled  ApprovalStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
// Escalated and on_hold are transient: they re-enter in_progress on the next
// action.
func (s ApprovalStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// ActionType is the closed set of actions an actor can take on a request.
type ActionType string

const (
	ActionApprove     ActionType = "approve"
	ActionReject      ActionType = "reject"
	ActionDelegate    ActionType = "delegate"
	ActionEscalate    ActionType = "escalate"
	ActionRequestInfo ActionType = "request_info"
)

// Valid reports whether the action type is one of the known actions.
func (a ActionType) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionDelegate, ActionEscalate, ActionRequestInfo:
		return true
	default:
		return false
	}
}

// Priority buckets a request by amount for queue ordering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityOrder = map[Priority]int{
	PriorityUrgent: 4,
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
}

// Order returns a sortable weight for the priority, higher is more urgent.
func (p Priority) Order() int {
	return priorityOrder[p]
}

// PriorityForAmount derives the queue priority from the transaction amount.
func PriorityForAmount(amount float64) Priority {
	switch {
	case amount > 75000:
		return PriorityUrgent
	case amount > 25000:
		return PriorityHigh
	case amount > 10000:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// SystemActor identifies automated actions in approvals and audit records.
const SystemActor = "system"

// ApprovalAction is one authorization event at a specific level. Append-only.
type ApprovalAction struct {
	ID            string     `json:"id"`
	Level         int        `json:"level"`
	ApproverID    string     `json:"approver_id"`
	ApproverRole  Role       `json:"approver_role"`
	Action        ActionType `json:"action"`
	Comment       string     `json:"comment,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	DelegatedFrom string     `json:"delegated_from,omitempty"`
	EscalatedFrom int        `json:"escalated_from,omitempty"`
}

// EscalationAction records one escalation of a request, manual or automated.
type EscalationAction struct {
	ID            string    `json:"id"`
	FromLevel     int       `json:"from_level"`
	ToLevel       int       `json:"to_level"`
	TriggerID     string    `json:"trigger_id,omitempty"`
	TriggerReason string    `json:"trigger_reason"`
	EscalatedBy   string    `json:"escalated_by"`
	EscalatedAt   time.Time `json:"escalated_at"`
	NewDeadline   time.Time `json:"new_deadline"`
	Automated     bool      `json:"automated"`
}

// DelegationRecord pairs an original approver with the delegate who acted for
// them, for audit attribution. It does not move the request's level.
type DelegationRecord struct {
	ID                 string    `json:"id"`
	OriginalApproverID string    `json:"original_approver_id"`
	DelegateApproverID string    `json:"delegate_approver_id"`
	Level              int       `json:"level"`
	StartTime          time.Time `json:"start_time"`
	Reason             string    `json:"reason,omitempty"`
	CreatedBy          string    `json:"created_by"`
}

// ApprovalRequest is the mutable aggregate root of one approval flow. It is
// mutated only through the workflow engine's action handlers; Version guards
// concurrent writers via optimistic locking.
type ApprovalRequest struct {
	ID            string              `json:"id"`
	WorkflowID    string              `json:"workflow_id"`
	TransactionID string              `json:"transaction_id"`
	Type          TransactionType     `json:"type"`
	Amount        float64             `json:"amount"`
	Currency      string              `json:"currency"`
	Description   string              `json:"description,omitempty"`
	RequesterID   string              `json:"requester_id"`
	RequesterRole Role                `json:"requester_role"`
	VenueID       string              `json:"venue_id,omitempty"`
	CurrentLevel  int                 `json:"current_level"`
	TotalLevels   int                 `json:"total_levels"`
	Status        ApprovalStatus      `json:"status"`
	Priority      Priority            `json:"priority"`
	SubmittedAt   time.Time           `json:"submitted_at"`
	Deadline      time.Time           `json:"deadline"`
	GlobalDeadline time.Time          `json:"global_deadline"`
	Approvals     []*ApprovalAction   `json:"approvals"`
	Escalations   []*EscalationAction `json:"escalations"`
	Delegations   []*DelegationRecord `json:"delegations"`
	AuditTrail    []*AuditRecord      `json:"audit_trail"`
	Tags          []string            `json:"tags,omitempty"`
	Version       int64               `json:"version"`
}

// NewApprovalRequest builds a pending request at level 1 of the workflow.
func NewApprovalRequest(workflow *ApprovalWorkflow, txc TransactionContext) *ApprovalRequest {
	now := txc.Now
	txn := txc.Transaction

	return &ApprovalRequest{
		ID:             "apr-" + uuid.NewString(),
		WorkflowID:     workflow.ID,
		TransactionID:  txn.ID,
		Type:           txn.Type,
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		RequesterID:    txc.RequesterID,
		RequesterRole:  txc.RequesterRole,
		VenueID:        txn.VenueID,
		CurrentLevel:   1,
		TotalLevels:    len(workflow.Levels),
		Status:         StatusPending,
		Priority:       PriorityForAmount(txn.Amount),
		SubmittedAt:    now,
		Deadline:       workflow.Levels[0].Deadline(now),
		GlobalDeadline: now.Add(time.Duration(workflow.GlobalTimeoutHours) * time.Hour),
		Approvals:      []*ApprovalAction{},
		Escalations:    []*EscalationAction{},
		Delegations:    []*DelegationRecord{},
		AuditTrail:     []*AuditRecord{},
		Tags:           requestTags(txn, workflow),
	}
}

func requestTags(txn *Transaction, workflow *ApprovalWorkflow) []string {
	tags := []string{
		string(txn.Type),
		strings.ToLower(strings.ReplaceAll(workflow.Name, " ", "-")),
	}

	if txn.Amount > 50000 {
		tags = append(tags, "high-value")
	}

	if txn.VenueID != "" {
		tags = append(tags, "venue-"+txn.VenueID)
	}

	return tags
}

// ApprovalsAtLevel counts approve actions recorded at the given level.
func (r *ApprovalRequest) ApprovalsAtLevel(level int) int {
	count := 0

	for _, action := range r.Approvals {
		if action.Level == level && action.Action == ActionApprove {
			count++
		}
	}

	return count
}

// HasActedAt reports whether the actor already has an action at the level.
// One action per actor per level is an invariant of the state machine.
func (r *ApprovalRequest) HasActedAt(level int, approverID string) bool {
	for _, action := range r.Approvals {
		if action.Level == level && action.ApproverID == approverID {
			return true
		}
	}

	return false
}

// RejectionCount counts reject actions across all levels.
func (r *ApprovalRequest) RejectionCount() int {
	count := 0

	for _, action := range r.Approvals {
		if action.Action == ActionReject {
			count++
		}
	}

	return count
}

// Overdue reports whether the per-level deadline has passed.
func (r *ApprovalRequest) Overdue(now time.Time) bool {
	return now.After(r.Deadline) && !r.Status.Terminal()
}

// AddTags appends tags not already present.
func (r *ApprovalRequest) AddTags(tags ...string) {
	for _, tag := range tags {
		if !contains(r.Tags, tag) {
			r.Tags = append(r.Tags, tag)
		}
	}
}
