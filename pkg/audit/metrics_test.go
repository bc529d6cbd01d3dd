package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandala/approvals/pkg/audit"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence/file"
)

var periodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func approvedRequest(id string, submittedAt time.Time, hoursToApprove int) *models.ApprovalRequest {
	return &models.ApprovalRequest{
		ID:          id,
		WorkflowID:  "wf-1",
		Status:      models.StatusApproved,
		SubmittedAt: submittedAt,
		TotalLevels: 1,
		Approvals: []*models.ApprovalAction{
			{
				Level:        1,
				ApproverID:   "user-rp",
				ApproverRole: models.RoleRP,
				Action:       models.ActionApprove,
				Timestamp:    submittedAt.Add(time.Duration(hoursToApprove) * time.Hour),
			},
		},
	}
}

func TestComputeMetrics(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.ApprovalRequests().Create(ctx, approvedRequest("apr-fast", periodStart, 2)))
	require.NoError(t, store.ApprovalRequests().Create(ctx, approvedRequest("apr-slow", periodStart.Add(24*time.Hour), 6)))

	rejected := &models.ApprovalRequest{
		ID:          "apr-rejected",
		WorkflowID:  "wf-1",
		Status:      models.StatusRejected,
		SubmittedAt: periodStart.Add(48 * time.Hour),
		TotalLevels: 2,
	}
	require.NoError(t, store.ApprovalRequests().Create(ctx, rejected))

	expired := &models.ApprovalRequest{
		ID:          "apr-expired",
		WorkflowID:  "wf-1",
		Status:      models.StatusExpired,
		SubmittedAt: periodStart.Add(72 * time.Hour),
		TotalLevels: 2,
		Escalations: []*models.EscalationAction{{FromLevel: 1, ToLevel: 2}},
	}
	require.NoError(t, store.ApprovalRequests().Create(ctx, expired))

	metrics, err := audit.ComputeMetrics(ctx, store.ApprovalRequests(), periodStart, periodStart.Add(7*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 4, metrics.TotalRequests)
	assert.Equal(t, 2, metrics.ApprovedRequests)
	assert.Equal(t, 1, metrics.RejectedRequests)
	assert.Equal(t, 1, metrics.ExpiredRequests)
	assert.Equal(t, 1, metrics.EscalatedRequests)

	assert.Equal(t, 4*time.Hour, metrics.AverageApprovalTime)
	assert.Equal(t, 4*time.Hour, metrics.AverageTimePerLevel[1])
	assert.Equal(t, 2, metrics.ApprovalsByRole[models.RoleRP])
	assert.Equal(t, 2, metrics.ApprovalsByUser["user-rp"])

	assert.InDelta(t, 0.25, metrics.TimeoutRate, 1e-9)
	assert.InDelta(t, 0.25, metrics.EscalationRate, 1e-9)
	assert.Zero(t, metrics.DelegationRate)
}

func TestComputeMetrics_EmptyPeriod(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())

	metrics, err := audit.ComputeMetrics(context.Background(), store.ApprovalRequests(), periodStart, periodStart.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Zero(t, metrics.TotalRequests)
	assert.Zero(t, metrics.AverageApprovalTime)
	assert.Zero(t, metrics.TimeoutRate)
}

func TestGenerateComplianceReport(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	selfApproved := &models.ApprovalRequest{
		ID:          "apr-self",
		WorkflowID:  "wf-1",
		RequesterID: "user-rp",
		Status:      models.StatusApproved,
		SubmittedAt: periodStart,
		TotalLevels: 1,
		Approvals: []*models.ApprovalAction{
			{Level: 1, ApproverID: "user-rp", ApproverRole: models.RoleRP, Action: models.ActionApprove, Timestamp: periodStart.Add(time.Hour)},
		},
	}
	require.NoError(t, store.ApprovalRequests().Create(ctx, selfApproved))

	repeat := &models.ApprovalRequest{
		ID:          "apr-repeat",
		WorkflowID:  "wf-1",
		RequesterID: "user-client",
		Status:      models.StatusApproved,
		SubmittedAt: periodStart,
		TotalLevels: 2,
		Approvals: []*models.ApprovalAction{
			{Level: 1, ApproverID: "user-manager", ApproverRole: models.RoleVenueManager, Action: models.ActionApprove, Timestamp: periodStart.Add(time.Hour)},
			{Level: 2, ApproverID: "user-manager", ApproverRole: models.RoleVenueManager, Action: models.ActionApprove, Timestamp: periodStart.Add(2 * time.Hour)},
		},
	}
	require.NoError(t, store.ApprovalRequests().Create(ctx, repeat))

	require.NoError(t, store.Audit().Append(ctx, &models.AuditRecord{
		ID: "aud-1", EntityID: "apr-self", PerformedBy: "user-rp", PerformedAt: periodStart.Add(time.Hour), ChangeType: models.ChangeApprove,
	}))
	require.NoError(t, store.Audit().Append(ctx, &models.AuditRecord{
		ID: "aud-2", EntityID: "apr-repeat", PerformedBy: "user-manager", PerformedAt: periodStart.Add(time.Hour), ChangeType: models.ChangeApprove,
	}))

	report, err := audit.GenerateComplianceReport(ctx, store, periodStart, periodStart.Add(7*24*time.Hour), "user-compliance")
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalActions)
	assert.Equal(t, 2, report.UniqueActors)
	require.Len(t, report.Violations, 2)

	assert.Equal(t, "self_approval", report.Violations[0].Type)
	assert.Equal(t, []string{"apr-self"}, report.Violations[0].RequestIDs)
	assert.Equal(t, "repeat_approver", report.Violations[1].Type)
	assert.Equal(t, []string{"apr-repeat"}, report.Violations[1].RequestIDs)
}

func TestGenerateComplianceReport_SystemActionsExempt(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	automated := &models.ApprovalRequest{
		ID:          "apr-auto",
		WorkflowID:  "wf-1",
		RequesterID: "user-client",
		Status:      models.StatusApproved,
		SubmittedAt: periodStart,
		TotalLevels: 2,
		Approvals: []*models.ApprovalAction{
			{Level: 1, ApproverID: models.SystemActor, ApproverRole: models.RoleAdmin, Action: models.ActionApprove, Timestamp: periodStart.Add(time.Minute)},
			{Level: 2, ApproverID: models.SystemActor, ApproverRole: models.RoleAdmin, Action: models.ActionApprove, Timestamp: periodStart.Add(2 * time.Minute)},
		},
	}
	require.NoError(t, store.ApprovalRequests().Create(ctx, automated))

	report, err := audit.GenerateComplianceReport(ctx, store, periodStart, periodStart.Add(24*time.Hour), "user-compliance")
	require.NoError(t, err)

	assert.Empty(t, report.Violations)
}
