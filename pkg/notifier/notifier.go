// Package notifier delivers approval notifications over the event bus.
// Delivery is best effort: a failed notification is logged and never rolls
// back the state change that triggered it.
package notifier

import (
	"context"
	"log/slog"

	"github.com/mandala/approvals/pkg/eventbus"
	"github.com/mandala/approvals/pkg/events"
	"github.com/mandala/approvals/pkg/models"
)

type Notifier interface {
	NotifyRequestCreated(ctx context.Context, request *models.ApprovalRequest)
	NotifyActionProcessed(ctx context.Context, request *models.ApprovalRequest, action *models.ApprovalAction)
	NotifyLevelAdvanced(ctx context.Context, request *models.ApprovalRequest, fromLevel int)
	NotifyCompleted(ctx context.Context, request *models.ApprovalRequest, reason, ruleID string)
	NotifyEscalated(ctx context.Context, request *models.ApprovalRequest, escalation *models.EscalationAction, notifyUsers []string)
	NotifyDelegationCreated(ctx context.Context, rule *models.DelegationRule)
}

// EventBusNotifier publishes notification events keyed by the entity id so
// consumers can partition per request.
type EventBusNotifier struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewEventBusNotifier(publisher eventbus.EventPublisher, logger *slog.Logger) *EventBusNotifier {
	return &EventBusNotifier{
		publisher: publisher,
		logger:    logger.With("module", "notifier"),
	}
}

func (n *EventBusNotifier) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := n.publisher.Publish(ctx, key, event); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish notification event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}

func (n *EventBusNotifier) NotifyRequestCreated(ctx context.Context, request *models.ApprovalRequest) {
	n.publish(ctx, request.ID, events.RequestCreated{
		BaseEvent:  events.NewBaseEvent(),
		RequestID:  request.ID,
		WorkflowID: request.WorkflowID,
		Amount:     request.Amount,
		Level:      request.CurrentLevel,
		Priority:   request.Priority,
		Status:     request.Status,
	})
}

func (n *EventBusNotifier) NotifyActionProcessed(ctx context.Context, request *models.ApprovalRequest, action *models.ApprovalAction) {
	n.publish(ctx, request.ID, events.ActionProcessed{
		BaseEvent: events.NewBaseEvent(),
		RequestID: request.ID,
		Action:    action.Action,
		ActorID:   action.ApproverID,
		Level:     action.Level,
		Automated: action.ApproverID == models.SystemActor,
	})
}

func (n *EventBusNotifier) NotifyLevelAdvanced(ctx context.Context, request *models.ApprovalRequest, fromLevel int) {
	n.publish(ctx, request.ID, events.LevelAdvanced{
		BaseEvent: events.NewBaseEvent(),
		RequestID: request.ID,
		FromLevel: fromLevel,
		ToLevel:   request.CurrentLevel,
		Deadline:  request.Deadline,
	})
}

func (n *EventBusNotifier) NotifyCompleted(ctx context.Context, request *models.ApprovalRequest, reason, ruleID string) {
	n.publish(ctx, request.ID, events.RequestCompleted{
		BaseEvent: events.NewBaseEvent(),
		RequestID: request.ID,
		Status:    request.Status,
		Reason:    reason,
		RuleID:    ruleID,
	})
}

func (n *EventBusNotifier) NotifyEscalated(ctx context.Context, request *models.ApprovalRequest, escalation *models.EscalationAction, notifyUsers []string) {
	n.publish(ctx, request.ID, events.RequestEscalated{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   request.ID,
		FromLevel:   escalation.FromLevel,
		ToLevel:     escalation.ToLevel,
		TriggerID:   escalation.TriggerID,
		NewDeadline: escalation.NewDeadline,
		Automated:   escalation.Automated,
		NotifyUsers: notifyUsers,
	})
}

func (n *EventBusNotifier) NotifyDelegationCreated(ctx context.Context, rule *models.DelegationRule) {
	n.publish(ctx, rule.ID, events.DelegationCreated{
		BaseEvent:    events.NewBaseEvent(),
		DelegationID: rule.ID,
		FromUserID:   rule.FromUserID,
		ToUserID:     rule.ToUserID,
		EndDate:      rule.EndDate,
	})
}
