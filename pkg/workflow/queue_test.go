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
	"github.com/mandala/approvals/pkg/workflow"
)

func TestQueue_ListForApprover(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedWorkflow(t, store, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := workflow.NewQueue(store, engine, logger)
	ctx := context.Background()

	small, err := engine.CreateApprovalRequest(ctx, paymentContext(5000))
	require.NoError(t, err)

	urgent, err := engine.CreateApprovalRequest(ctx, paymentContext(80000))
	require.NoError(t, err)

	items, err := queue.ListForApprover(ctx, "user-rp", models.RoleRP)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, urgent.ID, items[0].Request.ID, "urgent requests first")
	assert.Equal(t, small.ID, items[1].Request.ID)
	assert.Equal(t, "RP review", items[0].LevelName)

	// A client cannot act on level one.
	items, err = queue.ListForApprover(ctx, "user-client", models.RoleClient)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestQueue_IncludesDelegatedRequests(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedWorkflow(t, store, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := workflow.NewQueue(store, engine, logger)
	ctx := context.Background()

	request, err := engine.CreateApprovalRequest(ctx, paymentContext(5000))
	require.NoError(t, err)

	// Without a grant the client sees nothing.
	items, err := queue.ListForApprover(ctx, "user-delegate", models.RoleClient)
	require.NoError(t, err)
	require.Empty(t, items)

	now := time.Now().UTC()
	require.NoError(t, store.Delegations().Create(ctx, &models.DelegationRule{
		ID:         "del-1",
		FromUserID: "user-rp",
		FromRole:   models.RoleRP,
		ToUserID:   "user-delegate",
		ToRole:     models.RoleClient,
		StartDate:  now.Add(-time.Hour),
		EndDate:    now.Add(24 * time.Hour),
		Active:     true,
	}))

	items, err = queue.ListForApprover(ctx, "user-delegate", models.RoleClient)
	require.NoError(t, err)
	require.Len(t, items, 1, "a grant puts the delegator's work in the delegate's queue")
	assert.Equal(t, request.ID, items[0].Request.ID)
}

func TestQueue_ExcludesRequestsAlreadyActedOn(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedWorkflow(t, store, func(flow *models.ApprovalWorkflow) {
		flow.Levels[0].RequiredApprovers = 2
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := workflow.NewQueue(store, engine, logger)
	ctx := context.Background()

	request, err := engine.CreateApprovalRequest(ctx, paymentContext(5000))
	require.NoError(t, err)

	_, err = engine.ProcessApprovalAction(ctx, request.ID, workflow.ActionInput{
		ActorID:   "user-rp",
		ActorRole: models.RoleRP,
		Action:    models.ActionApprove,
	})
	require.NoError(t, err)

	items, err := queue.ListForApprover(ctx, "user-rp", models.RoleRP)
	require.NoError(t, err)
	assert.Empty(t, items, "the approver already decided this level")

	items, err = queue.ListForApprover(ctx, "user-rp-2", models.RoleRP)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestQueue_BulkAction(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedWorkflow(t, store, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := workflow.NewQueue(store, engine, logger)
	ctx := context.Background()

	first, err := engine.CreateApprovalRequest(ctx, paymentContext(5000))
	require.NoError(t, err)

	second, err := engine.CreateApprovalRequest(ctx, paymentContext(6000))
	require.NoError(t, err)

	results := queue.BulkAction(ctx, []string{first.ID, "apr-missing", second.ID}, workflow.ActionInput{
		ActorID:   "user-rp",
		ActorRole: models.RoleRP,
		Action:    models.ActionApprove,
	})

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error, "one failure never aborts the rest")
	assert.Empty(t, results[2].Error)

	updated, err := store.ApprovalRequests().GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentLevel)
}
