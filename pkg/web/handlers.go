// Package web provides HTTP handlers and REST API endpoints for the approval
// engine.
package web

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/mandala/approvals/pkg/audit"
	"github.com/mandala/approvals/pkg/automation"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/reconciliation"
	"github.com/mandala/approvals/pkg/workflow"
)

// historyWindow is how far back the requester's track record is read when a
// request is submitted.
const historyWindow = 30 * 24 * time.Hour

type APIHandlers struct {
	engine         *workflow.Engine
	queue          *workflow.Queue
	delegations    *workflow.DelegationManager
	reconciliation *reconciliation.Service
	recorder       *audit.Recorder
	persistence    persistence.Persistence
	validate       *validator.Validate
	logger         *slog.Logger
}

func NewAPIHandlers(
	engine *workflow.Engine,
	queue *workflow.Queue,
	delegations *workflow.DelegationManager,
	reconciliationService *reconciliation.Service,
	recorder *audit.Recorder,
	store persistence.Persistence,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		engine:         engine,
		queue:          queue,
		delegations:    delegations,
		reconciliation: reconciliationService,
		recorder:       recorder,
		persistence:    store,
		validate:       validate,
		logger:         logger.With("module", "web"),
	}
}

// CreateApprovalRequest submits a transaction for approval.
func (h *APIHandlers) CreateApprovalRequest(c fiber.Ctx) error {
	var body CreateApprovalRequestBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()

	history, err := h.persistence.Transactions().UserHistory(c.Context(), body.RequesterID, now.Add(-historyWindow))
	if err != nil {
		// History informs automation scoring only; creation proceeds without it.
		h.logger.WarnContext(c.Context(), "Failed to load requester history",
			"requester_id", body.RequesterID, "error", err)
	}

	txc := models.TransactionContext{
		Transaction:   &body.Transaction,
		RequesterID:   body.RequesterID,
		RequesterRole: body.RequesterRole,
		VenueType:     body.VenueType,
		UserTier:      body.UserTier,
		History:       history,
		Now:           now,
	}

	request, err := h.engine.CreateApprovalRequest(c.Context(), txc)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

func (h *APIHandlers) GetApprovalRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	request, err := h.persistence.ApprovalRequests().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Approval request not found")
		}

		return internalError(c, err)
	}

	return c.JSON(request)
}

// ProcessAction applies one actor action to a request.
func (h *APIHandlers) ProcessAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	var input workflow.ActionInput
	if err := c.Bind().JSON(&input); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(input); err != nil {
		return badRequest(c, err.Error())
	}

	request, err := h.engine.ProcessApprovalAction(c.Context(), id, input)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(request)
}

// GetQueue lists the requests awaiting the given approver.
func (h *APIHandlers) GetQueue(c fiber.Ctx) error {
	approverID := c.Query("approver_id")
	role := models.Role(c.Query("role"))

	if approverID == "" || !role.Valid() {
		return badRequest(c, "approver_id and a valid role are required")
	}

	items, err := h.queue.ListForApprover(c.Context(), approverID, role)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// BulkAction applies the same action to several requests.
func (h *APIHandlers) BulkAction(c fiber.Ctx) error {
	var body BulkActionBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	results := h.queue.BulkAction(c.Context(), body.RequestIDs, workflow.ActionInput{
		ActorID:   body.ActorID,
		ActorRole: body.ActorRole,
		Action:    body.Action,
		Comment:   body.Comment,
	})

	return c.JSON(fiber.Map{"results": results})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows().ListActive(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	flow, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var flow models.ApprovalWorkflow
	if err := c.Bind().JSON(&flow); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(flow); err != nil {
		return badRequest(c, err.Error())
	}

	if err := flow.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()

	if flow.ID == "" {
		flow.ID = "wf-" + uuid.NewString()
	}

	flow.CreatedAt = now
	flow.UpdatedAt = now

	if err := h.persistence.Workflows().Save(c.Context(), &flow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.persistence.Workflows().Delete(c.Context(), id); err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	rules, err := h.persistence.AutomationRules().ListEnabled(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule validates the raw document against the rule schema before
// decoding, then re-checks the decoded rule's invariants.
func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	body := c.Body()

	if err := automation.ValidateRuleDocument(body); err != nil {
		return badRequest(c, err.Error())
	}

	var rule models.AutomationRule
	if err := json.Unmarshal(body, &rule); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := rule.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()

	if rule.ID == "" {
		rule.ID = "rule-" + uuid.NewString()
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := h.persistence.AutomationRules().Save(c.Context(), &rule); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rule ID is required")
	}

	if err := h.persistence.AutomationRules().Delete(c.Context(), id); err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Automation rule not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateDelegation(c fiber.Ctx) error {
	var input workflow.DelegationInput
	if err := c.Bind().JSON(&input); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(input); err != nil {
		return badRequest(c, err.Error())
	}

	rule, err := h.delegations.DelegateApproval(c.Context(), input)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) RevokeDelegation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Delegation ID is required")
	}

	revokedBy := c.Query("revoked_by")
	if revokedBy == "" {
		return badRequest(c, "revoked_by is required")
	}

	if err := h.delegations.RevokeDelegation(c.Context(), id, revokedBy); err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Delegation rule not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Reconcile runs one provider's reconciliation for a date.
func (h *APIHandlers) Reconcile(c fiber.Ctx) error {
	var body ReconcileBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.reconciliation.ReconcileProviderTransactions(c.Context(), body.Provider, body.Date, body.External)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

// ReconcileDaily runs every external provider for a date.
func (h *APIHandlers) ReconcileDaily(c fiber.Ctx) error {
	var body DailyReconcileBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	runs, err := h.reconciliation.ProcessDailyReconciliation(c.Context(), body.Date, body.Feeds)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) GetReconciliationRun(c fiber.Ctx) error {
	provider := models.Provider(c.Params("provider"))
	date := c.Params("date")

	run, err := h.persistence.Reconciliation().GetRun(c.Context(), provider, date)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Reconciliation run not found")
		}

		return internalError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) ListUnresolved(c fiber.Ctx) error {
	provider := models.Provider(c.Params("provider"))

	entries, err := h.persistence.Reconciliation().ListUnresolved(c.Context(), provider)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

// ResolveDiscrepancy settles an open reconciliation entry.
func (h *APIHandlers) ResolveDiscrepancy(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Entry ID is required")
	}

	var body ResolveBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	resolved, err := h.reconciliation.ResolveDiscrepancy(c.Context(), id, body.Strategy, body.Adjustment, body.ResolvedBy, body.Notes)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resolved)
}

// ProcessSettlement rolls reconciled runs into a settlement report.
func (h *APIHandlers) ProcessSettlement(c fiber.Ctx) error {
	var body SettlementBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	report, err := h.reconciliation.ProcessSettlement(c.Context(), body.Provider, body.PeriodStart, body.PeriodEnd, body.ProcessedBy, body.Reference)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetMetrics aggregates approval statistics for a period, defaulting to the
// last 30 days.
func (h *APIHandlers) GetMetrics(c fiber.Ctx) error {
	start, end, err := parsePeriod(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	metrics, err := audit.ComputeMetrics(c.Context(), h.persistence.ApprovalRequests(), start, end)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(metrics)
}

func (h *APIHandlers) GetComplianceReport(c fiber.Ctx) error {
	start, end, err := parsePeriod(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	generatedBy := c.Query("generated_by", models.SystemActor)

	report, err := audit.GenerateComplianceReport(c.Context(), h.persistence, start, end, generatedBy)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) GetAuditRecords(c fiber.Ctx) error {
	query := persistence.AuditQuery{
		EntityID:   c.Query("entity_id"),
		ActorID:    c.Query("actor_id"),
		ChangeType: models.ChangeType(c.Query("change_type")),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+err.Error())
		}

		query.Limit = limit
	}

	records, err := h.recorder.List(c.Context(), query)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"records": records,
		"count":   len(records),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

func parsePeriod(c fiber.Ctx) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.Add(-30 * 24 * time.Hour)

	if startStr := c.Query("start"); startStr != "" {
		parsed, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return start, end, err
		}

		start = parsed
	}

	if endStr := c.Query("end"); endStr != "" {
		parsed, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return start, end, err
		}

		end = parsed
	}

	return start, end, nil
}
