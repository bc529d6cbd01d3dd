package workflow

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// QueueItem is one request awaiting the approver, with the level context the
// UI renders.
type QueueItem struct {
	Request      *models.ApprovalRequest `json:"request"`
	LevelName    string                  `json:"level_name"`
	RequiredRole models.Role             `json:"required_role"`
	Overdue      bool                    `json:"overdue"`
}

// BulkResult reports the outcome of one request in a bulk action.
type BulkResult struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`
}

// Queue builds per-approver worklists from active requests.
type Queue struct {
	persistence persistence.Persistence
	engine      *Engine
	logger      *slog.Logger
}

func NewQueue(store persistence.Persistence, engine *Engine, logger *slog.Logger) *Queue {
	return &Queue{
		persistence: store,
		engine:      engine,
		logger:      logger.With("module", "approval_queue"),
	}
}

// ListForApprover returns active requests the approver can act on, whether by
// their own role or through an active delegation grant, urgent first, nearest
// deadline first within a priority. Requests the approver already decided are
// excluded; the single pass over active requests keeps the merged list free of
// duplicates.
func (q *Queue) ListForApprover(ctx context.Context, approverID string, role models.Role) ([]*QueueItem, error) {
	requests, err := q.persistence.ApprovalRequests().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	grants, err := q.persistence.Delegations().ListActiveForUser(ctx, approverID, now)
	if err != nil {
		return nil, err
	}

	workflows := make(map[string]*models.ApprovalWorkflow)
	items := make([]*QueueItem, 0)

	for _, request := range requests {
		workflow, cached := workflows[request.WorkflowID]
		if !cached {
			workflow, err = q.persistence.Workflows().GetByID(ctx, request.WorkflowID)
			if err != nil {
				q.logger.WarnContext(ctx, "Skipping request with unresolvable workflow",
					"request_id", request.ID, "workflow_id", request.WorkflowID, "error", err)

				continue
			}

			workflows[request.WorkflowID] = workflow
		}

		level := workflow.LevelAt(request.CurrentLevel)
		if level == nil {
			continue
		}

		if !canActAt(level, role, grants, request, now) {
			continue
		}

		if request.HasActedAt(request.CurrentLevel, approverID) {
			continue
		}

		items = append(items, &QueueItem{
			Request:      request,
			LevelName:    level.Name,
			RequiredRole: level.RequiredRole,
			Overdue:      request.Overdue(now),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Request, items[j].Request
		if a.Priority.Order() != b.Priority.Order() {
			return a.Priority.Order() > b.Priority.Order()
		}

		return a.Deadline.Before(b.Deadline)
	})

	return items, nil
}

// canActAt mirrors the engine's authorization: the approver's own role first,
// then any delegation grant whose constraints fit the request.
func canActAt(level *models.ApprovalLevel, role models.Role, grants []*models.DelegationRule, request *models.ApprovalRequest, now time.Time) bool {
	if role.Satisfies(level.RequiredRole) {
		return true
	}

	for _, grant := range grants {
		if grant.FromRole.Satisfies(level.RequiredRole) && grant.AppliesTo(request, now) {
			return true
		}
	}

	return false
}

// BulkAction applies the same action to several requests. Each request is
// processed independently; one failure never aborts the rest.
func (q *Queue) BulkAction(ctx context.Context, requestIDs []string, input ActionInput) []BulkResult {
	results := make([]BulkResult, 0, len(requestIDs))

	for _, id := range requestIDs {
		result := BulkResult{RequestID: id}

		if _, err := q.engine.ProcessApprovalAction(ctx, id, input); err != nil {
			result.Error = err.Error()

			q.logger.WarnContext(ctx, "Bulk action failed for request", "request_id", id, "error", err)
		}

		results = append(results, result)
	}

	return results
}
