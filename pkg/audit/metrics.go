package audit

import (
	"context"
	"time"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// ComputeMetrics aggregates approval statistics over requests submitted in
// [start, end].
func ComputeMetrics(ctx context.Context, requests persistence.ApprovalRequestRepository, start, end time.Time) (*models.ApprovalMetrics, error) {
	all, err := requests.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	metrics := &models.ApprovalMetrics{
		AverageTimePerLevel: make(map[int]time.Duration),
		ApprovalsByRole:     make(map[models.Role]int),
		ApprovalsByUser:     make(map[string]int),
	}

	var (
		approvalTimeTotal time.Duration
		approvedWithTime  int
		levelTotals       = make(map[int]time.Duration)
		levelCounts       = make(map[int]int)
		escalated         int
		delegated         int
	)

	for _, request := range all {
		metrics.TotalRequests++

		switch request.Status {
		case models.StatusApproved:
			metrics.ApprovedRequests++
		case models.StatusRejected:
			metrics.RejectedRequests++
		case models.StatusExpired:
			metrics.ExpiredRequests++
		default:
			metrics.PendingRequests++
		}

		if len(request.Escalations) > 0 {
			metrics.EscalatedRequests++
			escalated++
		}

		if len(request.Delegations) > 0 {
			delegated++
		}

		previous := request.SubmittedAt

		for _, action := range request.Approvals {
			if action.Action != models.ActionApprove {
				continue
			}

			metrics.ApprovalsByRole[action.ApproverRole]++
			metrics.ApprovalsByUser[action.ApproverID]++

			levelTotals[action.Level] += action.Timestamp.Sub(previous)
			levelCounts[action.Level]++
			previous = action.Timestamp

			if request.Status == models.StatusApproved && action.Level == request.TotalLevels {
				approvalTimeTotal += action.Timestamp.Sub(request.SubmittedAt)
				approvedWithTime++
			}
		}
	}

	for level, total := range levelTotals {
		metrics.AverageTimePerLevel[level] = total / time.Duration(levelCounts[level])
	}

	if approvedWithTime > 0 {
		metrics.AverageApprovalTime = approvalTimeTotal / time.Duration(approvedWithTime)
	}

	if metrics.TotalRequests > 0 {
		total := float64(metrics.TotalRequests)
		metrics.TimeoutRate = float64(metrics.ExpiredRequests) / total
		metrics.EscalationRate = float64(escalated) / total
		metrics.DelegationRate = float64(delegated) / total
	}

	return metrics, nil
}
