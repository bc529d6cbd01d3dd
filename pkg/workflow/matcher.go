package workflow

import (
	"context"
	"log/slog"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// MatchResult pairs the selected workflow with the evaluation context the
// caller may surface: required levels and the risk factors observed.
type MatchResult struct {
	Workflow       *models.ApprovalWorkflow
	RequiredLevels int
	EstimatedHours int
	RiskFactors    []string
}

// Matcher selects the approval workflow for a candidate transaction.
type Matcher struct {
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
}

func NewMatcher(workflows persistence.WorkflowRepository, logger *slog.Logger) *Matcher {
	return &Matcher{
		workflows: workflows,
		logger:    logger.With("module", "workflow_matcher"),
	}
}

// EvaluateWorkflow returns the highest-priority active workflow whose
// conditions all hold. No match is a hard stop: nothing proceeds without an
// approval chain.
func (m *Matcher) EvaluateWorkflow(ctx context.Context, txc models.TransactionContext) (*MatchResult, error) {
	workflows, err := m.workflows.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if !workflow.Matches(txc) {
			continue
		}

		m.logger.InfoContext(ctx, "Workflow matched",
			"workflow_id", workflow.ID, "transaction_id", txc.Transaction.ID)

		return &MatchResult{
			Workflow:       workflow,
			RequiredLevels: len(workflow.Levels),
			EstimatedHours: workflow.EstimatedSLAHours(),
			RiskFactors:    assessRisk(workflow, txc),
		}, nil
	}

	return nil, ErrNoWorkflowMatched
}

// assessRisk flags conditions an approver should weigh, from the transaction
// and from the shape of the chain it will travel. Risk factors never change
// the matched workflow; they travel with the request as context.
func assessRisk(workflow *models.ApprovalWorkflow, txc models.TransactionContext) []string {
	risks := make([]string, 0)

	if txc.Transaction.Amount > 50000 {
		risks = append(risks, "high-value transaction")
	}

	hour := txc.Now.Hour()
	if hour < 6 || hour >= 22 {
		risks = append(risks, "outside business hours")
	}

	if txc.History != nil && txc.History.RejectedTransactions > 2 {
		risks = append(risks, "requester has recent rejections")
	}

	if txc.History != nil && txc.History.SuccessfulTransactions == 0 {
		risks = append(risks, "no successful transaction history")
	}

	if len(workflow.Levels) > 2 {
		risks = append(risks, "more than two approval levels")
	}

	serial := true

	for _, level := range workflow.Levels {
		if level.RequiredApprovers > 1 {
			serial = false

			break
		}
	}

	if serial {
		risks = append(risks, "serial-only approval chain")
	}

	return risks
}
