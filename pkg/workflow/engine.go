package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mandala/approvals/pkg/automation"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/notifier"
	"github.com/mandala/approvals/pkg/persistence"
)

// maxVersionRetries bounds reload-and-retry on aggregate version conflicts.
const maxVersionRetries = 3

// Auditor records state transitions. Recording is best effort from the
// engine's point of view; the implementation decides how failures surface.
type Auditor interface {
	Record(ctx context.Context, record *models.AuditRecord)
}

// ActionInput carries one actor action against a request.
type ActionInput struct {
	ActorID   string            `json:"actor_id"   validate:"required"`
	ActorRole models.Role       `json:"actor_role" validate:"required"`
	Action    models.ActionType `json:"action"     validate:"required"`
	Comment   string            `json:"comment,omitempty"`

	// Escalation fields.
	TargetLevel      int         `json:"target_level,omitempty"`
	EscalateToRole   models.Role `json:"escalate_to_role,omitempty"`
	NewDeadlineHours int         `json:"new_deadline_hours,omitempty"`
	TriggerID        string      `json:"trigger_id,omitempty"`

	// Delegation field.
	DelegateTo string `json:"delegate_to,omitempty"`

	// Now is injected by schedulers and tests; zero means the wall clock.
	Now time.Time `json:"-"`
}

func (in ActionInput) at() time.Time {
	if in.Now.IsZero() {
		return time.Now().UTC()
	}

	return in.Now
}

// Engine is the approval state machine. All request mutations flow through
// it: creation with automated first refusal, human actions, and scheduled
// escalation or expiry.
type Engine struct {
	persistence persistence.Persistence
	matcher     *Matcher
	automation  *automation.Engine
	notifier    notifier.Notifier
	auditor     Auditor
	logger      *slog.Logger
	locks       *keyedMutex
}

func NewEngine(
	store persistence.Persistence,
	matcher *Matcher,
	automationEngine *automation.Engine,
	notify notifier.Notifier,
	auditor Auditor,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: store,
		matcher:     matcher,
		automation:  automationEngine,
		notifier:    notify,
		auditor:     auditor,
		logger:      logger.With("module", "workflow_engine"),
		locks:       newKeyedMutex(),
	}
}

// CreateApprovalRequest matches a workflow, persists a new request at level
// one, and gives automation first refusal. Automation trouble never blocks
// creation; the request falls through to human review instead.
func (e *Engine) CreateApprovalRequest(ctx context.Context, txc models.TransactionContext) (*models.ApprovalRequest, error) {
	if txc.Now.IsZero() {
		txc.Now = time.Now().UTC()
	}

	match, err := e.matcher.EvaluateWorkflow(ctx, txc)
	if err != nil {
		return nil, err
	}

	request := models.NewApprovalRequest(match.Workflow, txc)

	record := newAuditRecord(request.ID, txc.RequesterID, models.ChangeCreate, "approval request created", map[string]any{
		"workflow_id":  match.Workflow.ID,
		"amount":       request.Amount,
		"risk_factors": match.RiskFactors,
	})
	request.AuditTrail = append(request.AuditTrail, record)

	if err := e.persistence.ApprovalRequests().Create(ctx, request); err != nil {
		return nil, err
	}

	e.auditor.Record(ctx, record)
	e.notifier.NotifyRequestCreated(ctx, request)

	decision, err := e.automation.Decide(ctx, txc)
	if err != nil {
		e.logger.WarnContext(ctx, "Automation evaluation failed, continuing to manual review",
			"request_id", request.ID, "error", err)

		return request, nil
	}

	if decision == nil {
		return request, nil
	}

	return e.applyAutomationDecision(ctx, request, decision, txc.Now)
}

// applyAutomationDecision executes the firing rule's actions as the system
// actor on a freshly created request.
func (e *Engine) applyAutomationDecision(ctx context.Context, request *models.ApprovalRequest, decision *automation.Decision, now time.Time) (*models.ApprovalRequest, error) {
	actions := decision.Rule.Actions

	if len(actions.AddTags) > 0 {
		request.AddTags(actions.AddTags...)
	}

	comment := fmt.Sprintf("automation rule %q (confidence %.2f)", decision.Rule.Name, decision.Confidence)

	switch {
	case actions.AutoApprove:
		e.appendSystemAction(request, models.ActionApprove, comment, now)
		request.Status = models.StatusApproved
	case actions.AutoReject:
		e.appendSystemAction(request, models.ActionReject, comment, now)
		request.Status = models.StatusRejected
	case actions.EscalateToLevel > 0 || actions.EscalateToRole != "":
		workflow, err := e.persistence.Workflows().GetByID(ctx, request.WorkflowID)
		if err != nil {
			return nil, err
		}

		input := ActionInput{
			ActorID:        models.SystemActor,
			Action:         models.ActionEscalate,
			Comment:        comment,
			TargetLevel:    actions.EscalateToLevel,
			EscalateToRole: actions.EscalateToRole,
			Now:            now,
		}
		if err := e.escalate(request, workflow, input, now); err != nil {
			// A misconfigured rule never blocks the request.
			e.logger.WarnContext(ctx, "Automation escalation not applicable, continuing to manual review",
				"request_id", request.ID, "rule_id", decision.Rule.ID, "error", err)

			return request, nil
		}
	}

	record := newAuditRecord(request.ID, models.SystemActor, changeTypeForStatus(request.Status), comment, map[string]any{
		"rule_id":    decision.Rule.ID,
		"confidence": decision.Confidence,
	})
	request.AuditTrail = append(request.AuditTrail, record)

	if err := e.persistence.ApprovalRequests().Update(ctx, request); err != nil {
		return nil, err
	}

	e.auditor.Record(ctx, record)

	if request.Status.Terminal() {
		e.notifier.NotifyCompleted(ctx, request, comment, decision.Rule.ID)
	}

	if len(actions.NotifyUsers) > 0 {
		e.logger.InfoContext(ctx, "Automation rule requested notifications",
			"request_id", request.ID, "rule_id", decision.Rule.ID, "users", actions.NotifyUsers)
	}

	return request, nil
}

func (e *Engine) appendSystemAction(request *models.ApprovalRequest, action models.ActionType, comment string, now time.Time) {
	request.Approvals = append(request.Approvals, &models.ApprovalAction{
		ID:           "act-" + uuid.NewString(),
		Level:        request.CurrentLevel,
		ApproverID:   models.SystemActor,
		ApproverRole: models.RoleAdmin,
		Action:       action,
		Comment:      comment,
		Timestamp:    now,
	})
}

// ProcessApprovalAction applies one actor action to a request. Processing is
// serialized per request in-process and retried on version conflicts against
// concurrent writers elsewhere.
func (e *Engine) ProcessApprovalAction(ctx context.Context, requestID string, input ActionInput) (*models.ApprovalRequest, error) {
	const op = "ProcessApprovalAction"

	if !input.Action.Valid() {
		return nil, newEngineError(op, requestID, ErrInvalidAction)
	}

	unlock := e.locks.lock(requestID)
	defer unlock()

	now := input.at()

	var lastErr error

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		request, err := e.persistence.ApprovalRequests().GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}

		workflow, err := e.persistence.Workflows().GetByID(ctx, request.WorkflowID)
		if err != nil {
			return nil, err
		}

		result, err := e.apply(ctx, request, workflow, input, now)
		if err != nil {
			return nil, newEngineError(op, requestID, err)
		}

		err = e.persistence.ApprovalRequests().Update(ctx, request)
		if err == nil {
			e.publishEffects(ctx, request, result)

			return request, nil
		}

		if !persistence.IsVersionConflict(err) {
			return nil, err
		}

		lastErr = err

		e.logger.WarnContext(ctx, "Version conflict, reloading request",
			"request_id", requestID, "attempt", attempt+1)
	}

	return nil, newEngineError(op, requestID, lastErr)
}

// actionEffects collects what happened during apply so notifications go out
// only after the aggregate was durably updated.
type actionEffects struct {
	action     *models.ApprovalAction
	escalation *models.EscalationAction
	record     *models.AuditRecord
	fromLevel  int
	advanced   bool
	completed  bool
	reason     string
}

func (e *Engine) apply(ctx context.Context, request *models.ApprovalRequest, workflow *models.ApprovalWorkflow, input ActionInput, now time.Time) (*actionEffects, error) {
	if request.Status.Terminal() {
		return nil, ErrRequestTerminal
	}

	level := workflow.LevelAt(request.CurrentLevel)
	if level == nil {
		return nil, fmt.Errorf("request %s references level %d outside workflow %s", request.ID, request.CurrentLevel, workflow.ID)
	}

	delegatedFrom, err := e.authorize(ctx, request, level, input, now)
	if err != nil {
		return nil, err
	}

	if input.Action == models.ActionApprove && !workflow.AllowSelfApproval && input.ActorID == request.RequesterID {
		return nil, ErrSelfApproval
	}

	// One recorded action per actor per level, whatever the action kind.
	if request.HasActedAt(request.CurrentLevel, input.ActorID) {
		return nil, ErrAlreadyActed
	}

	effects := &actionEffects{fromLevel: request.CurrentLevel}

	switch input.Action {
	case models.ActionApprove:
		e.approve(request, workflow, level, input, delegatedFrom, now, effects)
	case models.ActionReject:
		e.reject(request, input, delegatedFrom, now, effects)
	case models.ActionDelegate:
		if err := e.delegateSlot(request, workflow, input, now, effects); err != nil {
			return nil, err
		}
	case models.ActionEscalate:
		if err := e.escalate(request, workflow, input, now); err != nil {
			return nil, err
		}

		effects.escalation = request.Escalations[len(request.Escalations)-1]
	case models.ActionRequestInfo:
		e.requestInfo(request, input, delegatedFrom, now, effects)
	default:
		return nil, ErrInvalidAction
	}

	effects.record = newAuditRecord(request.ID, input.ActorID, changeTypeForAction(input.Action), string(input.Action), map[string]any{
		"level":   effects.fromLevel,
		"comment": input.Comment,
	})
	request.AuditTrail = append(request.AuditTrail, effects.record)

	return effects, nil
}

func (e *Engine) approve(request *models.ApprovalRequest, workflow *models.ApprovalWorkflow, level *models.ApprovalLevel, input ActionInput, delegatedFrom string, now time.Time, effects *actionEffects) {
	action := &models.ApprovalAction{
		ID:            "act-" + uuid.NewString(),
		Level:         request.CurrentLevel,
		ApproverID:    input.ActorID,
		ApproverRole:  input.ActorRole,
		Action:        models.ActionApprove,
		Comment:       input.Comment,
		Timestamp:     now,
		DelegatedFrom: delegatedFrom,
	}
	request.Approvals = append(request.Approvals, action)
	effects.action = action

	if request.ApprovalsAtLevel(request.CurrentLevel) < level.RequiredApprovers {
		request.Status = models.StatusInProgress

		return
	}

	if request.CurrentLevel >= request.TotalLevels {
		request.Status = models.StatusApproved
		effects.completed = true
		effects.reason = "all levels approved"

		return
	}

	next := workflow.LevelAt(request.CurrentLevel + 1)
	request.CurrentLevel++
	request.Deadline = next.Deadline(now)
	request.Status = models.StatusInProgress
	effects.advanced = true
}

// reject is absorbing: one rejection at any level decides the request.
func (e *Engine) reject(request *models.ApprovalRequest, input ActionInput, delegatedFrom string, now time.Time, effects *actionEffects) {
	action := &models.ApprovalAction{
		ID:            "act-" + uuid.NewString(),
		Level:         request.CurrentLevel,
		ApproverID:    input.ActorID,
		ApproverRole:  input.ActorRole,
		Action:        models.ActionReject,
		Comment:       input.Comment,
		Timestamp:     now,
		DelegatedFrom: delegatedFrom,
	}
	request.Approvals = append(request.Approvals, action)
	effects.action = action

	request.Status = models.StatusRejected
	effects.completed = true
	effects.reason = "rejected at level " + fmt.Sprint(action.Level)
}

// delegateSlot hands the actor's approval slot at the current level to
// another user. The request does not move; the delegate acts in the
// delegator's stead.
func (e *Engine) delegateSlot(request *models.ApprovalRequest, workflow *models.ApprovalWorkflow, input ActionInput, now time.Time, effects *actionEffects) error {
	if !workflow.AllowDelegation {
		return ErrInvalidDelegation
	}

	if input.DelegateTo == "" {
		return ErrDelegateRequired
	}

	request.Delegations = append(request.Delegations, &models.DelegationRecord{
		ID:                 "dlg-" + uuid.NewString(),
		OriginalApproverID: input.ActorID,
		DelegateApproverID: input.DelegateTo,
		Level:              request.CurrentLevel,
		StartTime:          now,
		Reason:             input.Comment,
		CreatedBy:          input.ActorID,
	})

	action := &models.ApprovalAction{
		ID:           "act-" + uuid.NewString(),
		Level:        request.CurrentLevel,
		ApproverID:   input.ActorID,
		ApproverRole: input.ActorRole,
		Action:       models.ActionDelegate,
		Comment:      input.Comment,
		Timestamp:    now,
	}
	request.Approvals = append(request.Approvals, action)
	effects.action = action

	return nil
}

// escalate moves the request to a strictly higher level. An explicit target
// outside the workflow is rejected; only the implicit next-level default is
// bounded by the last level. A role target resolves to the first higher level
// requiring that role.
func (e *Engine) escalate(request *models.ApprovalRequest, workflow *models.ApprovalWorkflow, input ActionInput, now time.Time) error {
	target := input.TargetLevel
	if target > request.TotalLevels {
		return ErrInvalidEscalation
	}

	if target == 0 && input.EscalateToRole != "" {
		for _, level := range workflow.Levels {
			if level.Level > request.CurrentLevel && level.RequiredRole == input.EscalateToRole {
				target = level.Level

				break
			}
		}
	}

	if target == 0 {
		target = request.CurrentLevel + 1
	}

	if target > request.TotalLevels {
		target = request.TotalLevels
	}

	if target <= request.CurrentLevel {
		return ErrInvalidEscalation
	}

	next := workflow.LevelAt(target)

	deadline := next.Deadline(now)
	if input.NewDeadlineHours > 0 {
		deadline = now.Add(time.Duration(input.NewDeadlineHours) * time.Hour)
	}

	reason := input.Comment
	if reason == "" {
		reason = "manual escalation"
	}

	request.Escalations = append(request.Escalations, &models.EscalationAction{
		ID:            "esc-" + uuid.NewString(),
		FromLevel:     request.CurrentLevel,
		ToLevel:       target,
		TriggerID:     input.TriggerID,
		TriggerReason: reason,
		EscalatedBy:   input.ActorID,
		EscalatedAt:   now,
		NewDeadline:   deadline,
		Automated:     input.ActorID == models.SystemActor,
	})

	request.CurrentLevel = target
	request.Deadline = deadline
	request.Status = models.StatusEscalated

	return nil
}

func (e *Engine) requestInfo(request *models.ApprovalRequest, input ActionInput, delegatedFrom string, now time.Time, effects *actionEffects) {
	action := &models.ApprovalAction{
		ID:            "act-" + uuid.NewString(),
		Level:         request.CurrentLevel,
		ApproverID:    input.ActorID,
		ApproverRole:  input.ActorRole,
		Action:        models.ActionRequestInfo,
		Comment:       input.Comment,
		Timestamp:     now,
		DelegatedFrom: delegatedFrom,
	}
	request.Approvals = append(request.Approvals, action)
	effects.action = action

	request.Status = models.StatusOnHold
}

// authorize checks the actor's own role first, then active delegation grants.
// The system actor bypasses role checks: automated escalation and expiry act
// on behalf of the platform.
func (e *Engine) authorize(ctx context.Context, request *models.ApprovalRequest, level *models.ApprovalLevel, input ActionInput, now time.Time) (string, error) {
	if input.ActorID == models.SystemActor {
		return "", nil
	}

	if input.ActorRole.Satisfies(level.RequiredRole) {
		return "", nil
	}

	grants, err := e.persistence.Delegations().ListActiveForUser(ctx, input.ActorID, now)
	if err != nil {
		return "", err
	}

	for _, grant := range grants {
		if grant.FromRole.Satisfies(level.RequiredRole) && grant.AppliesTo(request, now) {
			return grant.FromUserID, nil
		}
	}

	return "", ErrUnauthorized
}

// ExpireRequest marks a request whose global deadline passed. Called by the
// escalation scheduler; no trigger applies once the whole chain timed out.
func (e *Engine) ExpireRequest(ctx context.Context, requestID string, now time.Time) (*models.ApprovalRequest, error) {
	unlock := e.locks.lock(requestID)
	defer unlock()

	request, err := e.persistence.ApprovalRequests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status.Terminal() {
		return request, nil
	}

	request.Status = models.StatusExpired

	record := newAuditRecord(request.ID, models.SystemActor, models.ChangeUpdate, "request expired", map[string]any{
		"global_deadline": request.GlobalDeadline,
	})
	request.AuditTrail = append(request.AuditTrail, record)

	if err := e.persistence.ApprovalRequests().Update(ctx, request); err != nil {
		return nil, err
	}

	e.auditor.Record(ctx, record)
	e.notifier.NotifyCompleted(ctx, request, "global deadline exceeded", "")

	return request, nil
}

func (e *Engine) publishEffects(ctx context.Context, request *models.ApprovalRequest, effects *actionEffects) {
	e.auditor.Record(ctx, effects.record)

	if effects.action != nil {
		e.notifier.NotifyActionProcessed(ctx, request, effects.action)
	}

	if effects.advanced {
		e.notifier.NotifyLevelAdvanced(ctx, request, effects.fromLevel)
	}

	if effects.escalation != nil {
		e.notifier.NotifyEscalated(ctx, request, effects.escalation, nil)
	}

	if effects.completed {
		e.notifier.NotifyCompleted(ctx, request, effects.reason, "")
	}
}

func newAuditRecord(entityID, actor string, changeType models.ChangeType, action string, details map[string]any) *models.AuditRecord {
	return &models.AuditRecord{
		ID:          "aud-" + uuid.NewString(),
		Action:      action,
		PerformedBy: actor,
		PerformedAt: time.Now().UTC(),
		EntityType:  "approval_request",
		EntityID:    entityID,
		Details:     details,
		ChangeType:  changeType,
	}
}

func changeTypeForAction(action models.ActionType) models.ChangeType {
	switch action {
	case models.ActionApprove:
		return models.ChangeApprove
	case models.ActionReject:
		return models.ChangeReject
	case models.ActionEscalate:
		return models.ChangeEscalate
	case models.ActionDelegate:
		return models.ChangeDelegate
	default:
		return models.ChangeUpdate
	}
}

func changeTypeForStatus(status models.ApprovalStatus) models.ChangeType {
	switch status {
	case models.StatusApproved:
		return models.ChangeApprove
	case models.StatusRejected:
		return models.ChangeReject
	case models.StatusEscalated:
		return models.ChangeEscalate
	default:
		return models.ChangeUpdate
	}
}
