package postgresql_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{
		"approval_requests", "workflows", "delegations", "automation_rules",
		"escalation_triggers", "audit_records", "reconciliation_runs",
		"reconciliation_entries", "settlement_reports", "transactions",
		"schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("approvals_test"),
			postgres.WithUsername("approvals"),
			postgres.WithPassword("approvals"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'approval_requests')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "approval_requests table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'reconciliation_entries')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "reconciliation_entries table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	err := store.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestRequestRepository_OptimisticLocking(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	request := &models.ApprovalRequest{
		ID:          "req-pg-1",
		WorkflowID:  "wf-1",
		Type:        models.TransactionWithdrawal,
		Amount:      1200,
		Status:      models.StatusPending,
		SubmittedAt: now,
		Deadline:    now.Add(24 * time.Hour),
	}

	err := store.ApprovalRequests().Create(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, int64(1), request.Version)

	err = store.ApprovalRequests().Create(ctx, request)
	assert.ErrorIs(t, err, persistence.ErrAlreadyExists)

	first, err := store.ApprovalRequests().GetByID(ctx, request.ID)
	require.NoError(t, err)

	second, err := store.ApprovalRequests().GetByID(ctx, request.ID)
	require.NoError(t, err)

	first.Status = models.StatusInProgress
	err = store.ApprovalRequests().Update(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Version)

	second.Status = models.StatusCancelled
	err = store.ApprovalRequests().Update(ctx, second)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	stored, err := store.ApprovalRequests().GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Equal(t, int64(2), stored.Version)

	missing := &models.ApprovalRequest{ID: "req-pg-missing", Version: 1}
	err = store.ApprovalRequests().Update(ctx, missing)
	assert.ErrorIs(t, err, persistence.ErrRequestNotFound)
}

func TestRequestRepository_Listing(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)

	overdue := &models.ApprovalRequest{
		ID:          "req-pg-overdue",
		Status:      models.StatusInProgress,
		SubmittedAt: now.Add(-48 * time.Hour),
		Deadline:    now.Add(-1 * time.Hour),
	}
	terminal := &models.ApprovalRequest{
		ID:          "req-pg-approved",
		Status:      models.StatusApproved,
		SubmittedAt: now.Add(-48 * time.Hour),
		Deadline:    now.Add(-2 * time.Hour),
	}
	pending := &models.ApprovalRequest{
		ID:          "req-pg-pending",
		Status:      models.StatusPending,
		SubmittedAt: now,
		Deadline:    now.Add(24 * time.Hour),
	}

	for _, request := range []*models.ApprovalRequest{overdue, terminal, pending} {
		require.NoError(t, store.ApprovalRequests().Create(ctx, request))
	}

	late, err := store.ApprovalRequests().ListOverdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, "req-pg-overdue", late[0].ID)

	active, err := store.ApprovalRequests().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	ranged, err := store.ApprovalRequests().ListByDateRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "req-pg-pending", ranged[0].ID)
}

func TestWorkflowRepository_ListActiveOrder(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflows := []*models.ApprovalWorkflow{
		{ID: "wf-low", Name: "Low priority", Active: true, Priority: 10},
		{ID: "wf-high", Name: "High priority", Active: true, Priority: 90},
		{ID: "wf-off", Name: "Disabled", Active: false, Priority: 100},
	}

	for _, workflow := range workflows {
		require.NoError(t, store.Workflows().Save(ctx, workflow))
	}

	active, err := store.Workflows().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "wf-high", active[0].ID)
	assert.Equal(t, "wf-low", active[1].ID)

	err = store.Workflows().Delete(ctx, "wf-off")
	require.NoError(t, err)

	err = store.Workflows().Delete(ctx, "wf-off")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestDelegationRepository_WindowAndRevoke(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)

	grant := &models.DelegationRule{
		ID:         "del-pg-1",
		FromUserID: "user-manager",
		FromRole:   models.RoleVenueManager,
		ToUserID:   "user-delegate",
		ToRole:     models.RoleClient,
		StartDate:  now.Add(-time.Hour),
		EndDate:    now.Add(24 * time.Hour),
		Active:     true,
	}
	expired := &models.DelegationRule{
		ID:         "del-pg-expired",
		FromUserID: "user-manager",
		FromRole:   models.RoleVenueManager,
		ToUserID:   "user-delegate",
		ToRole:     models.RoleClient,
		StartDate:  now.Add(-72 * time.Hour),
		EndDate:    now.Add(-48 * time.Hour),
		Active:     true,
	}

	require.NoError(t, store.Delegations().Create(ctx, grant))
	require.NoError(t, store.Delegations().Create(ctx, expired))

	err := store.Delegations().Create(ctx, grant)
	assert.ErrorIs(t, err, persistence.ErrAlreadyExists)

	active, err := store.Delegations().ListActiveForUser(ctx, "user-delegate", now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "del-pg-1", active[0].ID)

	err = store.Delegations().Revoke(ctx, "del-pg-1")
	require.NoError(t, err)

	revoked, err := store.Delegations().GetByID(ctx, "del-pg-1")
	require.NoError(t, err)
	assert.False(t, revoked.Active, "revocation must reach the stored document")

	active, err = store.Delegations().ListActiveForUser(ctx, "user-delegate", now)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestReconciliationRepository_UnresolvedAndSettlements(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)

	entries := []*models.ReconciliationEntry{
		{ID: "entry-open", Provider: models.ProviderStripe, Status: models.ReconDisputed, Discrepancy: 12.5},
		{ID: "entry-done", Provider: models.ProviderStripe, Status: models.ReconUnmatched},
		{ID: "entry-fix", Provider: models.ProviderStripe, Status: models.ReconResolved, ResolvedFrom: "entry-done"},
		{ID: "entry-matched", Provider: models.ProviderStripe, Status: models.ReconMatched},
	}

	for _, entry := range entries {
		require.NoError(t, store.Reconciliation().CreateEntry(ctx, entry))
	}

	open, err := store.Reconciliation().ListUnresolved(ctx, models.ProviderStripe)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "entry-open", open[0].ID)

	run := &models.DailyReconciliation{
		Provider: models.ProviderStripe,
		Date:     "2026-08-28",
		Matched:  3,
		Status:   "completed",
	}
	require.NoError(t, store.Reconciliation().SaveRun(ctx, run))

	stored, err := store.Reconciliation().GetRun(ctx, models.ProviderStripe, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Matched)

	_, err = store.Reconciliation().LastSettlement(ctx, models.ProviderStripe)
	assert.ErrorIs(t, err, persistence.ErrSettlementNotFound)

	older := &models.SettlementReport{ID: "settle-1", Provider: models.ProviderStripe, SettlementDate: now.Add(-48 * time.Hour)}
	newer := &models.SettlementReport{ID: "settle-2", Provider: models.ProviderStripe, SettlementDate: now}

	require.NoError(t, store.Reconciliation().SaveSettlement(ctx, older))
	require.NoError(t, store.Reconciliation().SaveSettlement(ctx, newer))

	last, err := store.Reconciliation().LastSettlement(ctx, models.ProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, "settle-2", last.ID)
}

func TestAuditRepository_AppendAndFilter(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)

	records := []*models.AuditRecord{
		{ID: "audit-1", EntityID: "req-1", PerformedBy: "user-a", ChangeType: models.ChangeApprove, PerformedAt: now.Add(-2 * time.Hour)},
		{ID: "audit-2", EntityID: "req-1", PerformedBy: "user-b", ChangeType: models.ChangeEscalate, PerformedAt: now.Add(-time.Hour)},
		{ID: "audit-3", EntityID: "req-2", PerformedBy: "user-a", ChangeType: models.ChangeApprove, PerformedAt: now},
	}

	for _, record := range records {
		require.NoError(t, store.Audit().Append(ctx, record))
	}

	err := store.Audit().Append(ctx, records[0])
	assert.ErrorIs(t, err, persistence.ErrAlreadyExists)

	byEntity, err := store.Audit().List(ctx, persistence.AuditQuery{EntityID: "req-1"})
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Equal(t, "audit-1", byEntity[0].ID, "records come back oldest first")

	byActor, err := store.Audit().List(ctx, persistence.AuditQuery{ActorID: "user-a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, "audit-1", byActor[0].ID)
}

func TestTransactionRepository_Reads(t *testing.T) {
	store, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	day, err := time.Parse("2006-01-02", "2026-08-27")
	require.NoError(t, err)

	transactions := []*models.Transaction{
		{ID: "txn-1", Type: models.TransactionWithdrawal, Amount: 500, Provider: models.ProviderStripe, UserID: "user-a",
			CreatedAt: day.Add(10 * time.Hour), Metadata: map[string]string{"approval_outcome": "approved"}},
		{ID: "txn-2", Type: models.TransactionWithdrawal, Amount: 900, Provider: models.ProviderStripe, UserID: "user-a",
			CreatedAt: day.Add(12 * time.Hour), Metadata: map[string]string{"approval_outcome": "rejected"}},
		{ID: "txn-3", Type: models.TransactionWithdrawal, Amount: 100, Provider: models.ProviderStripe, UserID: "user-b",
			CreatedAt: day.AddDate(0, 0, 1).Add(time.Hour)},
	}

	// The engine never writes transactions, so seed them the way the wallet
	// service would.
	for _, txn := range transactions {
		document, err := json.Marshal(txn)
		require.NoError(t, err)

		_, err = db.ExecContext(ctx,
			"INSERT INTO transactions (id, provider, user_id, created_at, document) VALUES ($1, $2, $3, $4, $5)",
			txn.ID, txn.Provider, txn.UserID, txn.CreatedAt, document)
		require.NoError(t, err)
	}

	byDate, err := store.Transactions().GetByProviderAndDate(ctx, models.ProviderStripe, "2026-08-27")
	require.NoError(t, err)
	require.Len(t, byDate, 2)
	assert.Equal(t, "txn-1", byDate[0].ID)

	history, err := store.Transactions().UserHistory(ctx, "user-a", day)
	require.NoError(t, err)
	assert.Equal(t, 1, history.SuccessfulTransactions)
	assert.Equal(t, 1, history.RejectedTransactions)
}
