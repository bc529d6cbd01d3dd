// Package events defines event types and structures for approval lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/mandala/approvals/pkg/models"
)

type EventType string

// Kafka topic for approval engine events.
const Topic = "approvals.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Approval lifecycle events.
	RequestCreatedEvent   EventType = "approval.request.created"
	ActionProcessedEvent  EventType = "approval.action.processed"
	LevelAdvancedEvent    EventType = "approval.level.advanced"
	RequestCompletedEvent EventType = "approval.request.completed"
	RequestEscalatedEvent EventType = "approval.request.escalated"

	// Delegation events.
	DelegationCreatedEvent EventType = "approval.delegation.created"

	// Reconciliation events.
	ReconciliationCompletedEvent EventType = "reconciliation.run.completed"
	DiscrepancyResolvedEvent     EventType = "reconciliation.discrepancy.resolved"
)

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent creates a base event with a fresh id and the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

type RequestCreated struct {
	BaseEvent

	RequestID  string                `json:"request_id"`
	WorkflowID string                `json:"workflow_id"`
	Amount     float64               `json:"amount"`
	Level      int                   `json:"level"`
	Priority   models.Priority       `json:"priority"`
	Status     models.ApprovalStatus `json:"status"`
}

func (e RequestCreated) GetType() EventType { return RequestCreatedEvent }

type ActionProcessed struct {
	BaseEvent

	RequestID string            `json:"request_id"`
	Action    models.ActionType `json:"action"`
	ActorID   string            `json:"actor_id"`
	Level     int               `json:"level"`
	Automated bool              `json:"automated"`
}

func (e ActionProcessed) GetType() EventType { return ActionProcessedEvent }

type LevelAdvanced struct {
	BaseEvent

	RequestID string    `json:"request_id"`
	FromLevel int       `json:"from_level"`
	ToLevel   int       `json:"to_level"`
	Deadline  time.Time `json:"deadline"`
}

func (e LevelAdvanced) GetType() EventType { return LevelAdvancedEvent }

type RequestCompleted struct {
	BaseEvent

	RequestID string                `json:"request_id"`
	Status    models.ApprovalStatus `json:"status"`
	Reason    string                `json:"reason,omitempty"`
	RuleID    string                `json:"rule_id,omitempty"`
}

func (e RequestCompleted) GetType() EventType { return RequestCompletedEvent }

type RequestEscalated struct {
	BaseEvent

	RequestID   string    `json:"request_id"`
	FromLevel   int       `json:"from_level"`
	ToLevel     int       `json:"to_level"`
	TriggerID   string    `json:"trigger_id,omitempty"`
	NewDeadline time.Time `json:"new_deadline"`
	Automated   bool      `json:"automated"`
	NotifyUsers []string  `json:"notify_users,omitempty"`
}

func (e RequestEscalated) GetType() EventType { return RequestEscalatedEvent }

type DelegationCreated struct {
	BaseEvent

	DelegationID string    `json:"delegation_id"`
	FromUserID   string    `json:"from_user_id"`
	ToUserID     string    `json:"to_user_id"`
	EndDate      time.Time `json:"end_date"`
}

func (e DelegationCreated) GetType() EventType { return DelegationCreatedEvent }

type ReconciliationCompleted struct {
	BaseEvent

	Provider  models.Provider `json:"provider"`
	Date      string          `json:"date"`
	Matched   int             `json:"matched"`
	Unmatched int             `json:"unmatched"`
	Disputed  int             `json:"disputed"`
}

func (e ReconciliationCompleted) GetType() EventType { return ReconciliationCompletedEvent }

type DiscrepancyResolved struct {
	BaseEvent

	EntryID    string                    `json:"entry_id"`
	ResolvedID string                    `json:"resolved_id"`
	Strategy   models.ResolutionStrategy `json:"strategy"`
	ResolvedBy string                    `json:"resolved_by"`
}

func (e DiscrepancyResolved) GetType() EventType { return DiscrepancyResolvedEvent }
