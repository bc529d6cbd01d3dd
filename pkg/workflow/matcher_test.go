package workflow_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence/file"
	"github.com/mandala/approvals/pkg/workflow"
)

func TestMatcher_FlagsRiskyTransactionsAndChains(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := workflow.NewMatcher(store.Workflows(), logger)
	ctx := context.Background()

	require.NoError(t, store.Workflows().Save(ctx, &models.ApprovalWorkflow{
		ID:                 "wf-deep",
		Name:               "High Value Payments",
		Active:             true,
		GlobalTimeoutHours: 96,
		Levels: []*models.ApprovalLevel{
			{Level: 1, RequiredRole: models.RoleRP, RequiredApprovers: 1, TimeoutHours: 24},
			{Level: 2, RequiredRole: models.RoleVenueManager, RequiredApprovers: 1, TimeoutHours: 24},
			{Level: 3, RequiredRole: models.RoleAdmin, RequiredApprovers: 1, TimeoutHours: 24},
		},
	}))

	txc := paymentContext(60000)
	txc.Now = time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)

	match, err := matcher.EvaluateWorkflow(ctx, txc)
	require.NoError(t, err)

	assert.Equal(t, 3, match.RequiredLevels)
	assert.Contains(t, match.RiskFactors, "high-value transaction")
	assert.Contains(t, match.RiskFactors, "outside business hours")
	assert.Contains(t, match.RiskFactors, "more than two approval levels")
	assert.Contains(t, match.RiskFactors, "serial-only approval chain")
}

func TestMatcher_QuorumChainCarriesNoChainRisks(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := workflow.NewMatcher(store.Workflows(), logger)
	ctx := context.Background()

	require.NoError(t, store.Workflows().Save(ctx, &models.ApprovalWorkflow{
		ID:                 "wf-quorum",
		Name:               "Venue Payments",
		Active:             true,
		GlobalTimeoutHours: 72,
		Levels: []*models.ApprovalLevel{
			{Level: 1, RequiredRole: models.RoleRP, RequiredApprovers: 2, TimeoutHours: 24},
			{Level: 2, RequiredRole: models.RoleVenueManager, RequiredApprovers: 1, TimeoutHours: 24},
		},
	}))

	match, err := matcher.EvaluateWorkflow(ctx, paymentContext(5000))
	require.NoError(t, err)

	assert.NotContains(t, match.RiskFactors, "more than two approval levels")
	assert.NotContains(t, match.RiskFactors, "serial-only approval chain")
	assert.NotContains(t, match.RiskFactors, "high-value transaction")
}
