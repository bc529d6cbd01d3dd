package workflow_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandala/approvals/pkg/audit"
	"github.com/mandala/approvals/pkg/channels/gochannel"
	"github.com/mandala/approvals/pkg/eventbus"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/notifier"
	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/persistence/file"
	"github.com/mandala/approvals/pkg/workflow"
)

func newDelegationManager(t *testing.T) (*workflow.DelegationManager, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)
	t.Cleanup(func() { _ = bus.Close() })

	notify := notifier.NewEventBusNotifier(bus, logger)
	recorder := audit.NewRecorder(store.Audit(), logger)

	return workflow.NewDelegationManager(store.Delegations(), notify, recorder, logger), store
}

func TestDelegationManager_DelegateApproval(t *testing.T) {
	t.Parallel()

	manager, store := newDelegationManager(t)
	ctx := context.Background()

	rule, err := manager.DelegateApproval(ctx, workflow.DelegationInput{
		FromUserID: "user-rp",
		FromRole:   models.RoleRP,
		ToUserID:   "user-manager",
		ToRole:     models.RoleVenueManager,
		Reason:     "vacation cover",
		CreatedBy:  "user-rp",
	})
	require.NoError(t, err)

	assert.True(t, rule.Active)
	assert.Equal(t, rule.StartDate.Add(models.DefaultDelegationWindow), rule.EndDate, "default window applies")

	active, err := store.Delegations().ListActiveForUser(ctx, "user-manager", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rule.ID, active[0].ID)
}

func TestDelegationManager_DelegateDownwardDenied(t *testing.T) {
	t.Parallel()

	manager, _ := newDelegationManager(t)

	_, err := manager.DelegateApproval(context.Background(), workflow.DelegationInput{
		FromUserID: "user-manager",
		FromRole:   models.RoleVenueManager,
		ToUserID:   "user-rp",
		ToRole:     models.RoleRP,
	})
	assert.ErrorIs(t, err, workflow.ErrInvalidDelegation, "delegation may not lower the approval bar")
}

func TestDelegationManager_HighValueRequiresAdmin(t *testing.T) {
	t.Parallel()

	manager, _ := newDelegationManager(t)
	ctx := context.Background()

	_, err := manager.DelegateApproval(ctx, workflow.DelegationInput{
		FromUserID: "user-manager",
		FromRole:   models.RoleVenueManager,
		ToUserID:   "user-other",
		ToRole:     models.RoleVenueManager,
		MaxAmount:  150000,
	})
	assert.ErrorIs(t, err, workflow.ErrInvalidDelegation)

	rule, err := manager.DelegateApproval(ctx, workflow.DelegationInput{
		FromUserID: "user-admin",
		FromRole:   models.RoleAdmin,
		ToUserID:   "user-other-admin",
		ToRole:     models.RoleAdmin,
		MaxAmount:  150000,
	})
	require.NoError(t, err)
	assert.Equal(t, 150000.0, rule.MaxAmount)
}

func TestDelegationManager_UnknownRoleDenied(t *testing.T) {
	t.Parallel()

	manager, _ := newDelegationManager(t)

	_, err := manager.DelegateApproval(context.Background(), workflow.DelegationInput{
		FromUserID: "user-a",
		FromRole:   models.Role("superuser"),
		ToUserID:   "user-b",
		ToRole:     models.RoleAdmin,
	})
	assert.ErrorIs(t, err, workflow.ErrInvalidDelegation)
}

func TestDelegationManager_InvertedWindowDenied(t *testing.T) {
	t.Parallel()

	manager, _ := newDelegationManager(t)
	now := time.Now().UTC()

	_, err := manager.DelegateApproval(context.Background(), workflow.DelegationInput{
		FromUserID: "user-rp",
		FromRole:   models.RoleRP,
		ToUserID:   "user-manager",
		ToRole:     models.RoleVenueManager,
		StartDate:  now,
		EndDate:    now.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, workflow.ErrInvalidDelegation)
}

func TestDelegationManager_Revoke(t *testing.T) {
	t.Parallel()

	manager, store := newDelegationManager(t)
	ctx := context.Background()

	rule, err := manager.DelegateApproval(ctx, workflow.DelegationInput{
		FromUserID: "user-rp",
		FromRole:   models.RoleRP,
		ToUserID:   "user-manager",
		ToRole:     models.RoleVenueManager,
		CreatedBy:  "user-rp",
	})
	require.NoError(t, err)

	require.NoError(t, manager.RevokeDelegation(ctx, rule.ID, "user-admin"))

	active, err := store.Delegations().ListActiveForUser(ctx, "user-manager", time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, active)
}
