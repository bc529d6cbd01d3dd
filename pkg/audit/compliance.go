package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// GenerateComplianceReport scans requests and the audit log for a period and
// flags policy breaches.
func GenerateComplianceReport(ctx context.Context, store persistence.Persistence, start, end time.Time, generatedBy string) (*models.ComplianceReport, error) {
	records, err := store.Audit().List(ctx, persistence.AuditQuery{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	requests, err := store.ApprovalRequests().ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	actors := make(map[string]bool)
	for _, record := range records {
		actors[record.PerformedBy] = true
	}

	report := &models.ComplianceReport{
		ReportID:     "cmp-" + uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		GeneratedBy:  generatedBy,
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalActions: len(records),
		UniqueActors: len(actors),
		Violations:   make([]*models.ComplianceViolation, 0),
	}

	if ids := selfApprovals(requests); len(ids) > 0 {
		report.Violations = append(report.Violations, &models.ComplianceViolation{
			Type:        "self_approval",
			Description: "requester approved their own request",
			Severity:    "high",
			RequestIDs:  ids,
		})
	}

	if ids := repeatApprovers(requests); len(ids) > 0 {
		report.Violations = append(report.Violations, &models.ComplianceViolation{
			Type:        "repeat_approver",
			Description: "one approver decided multiple levels of the same request",
			Severity:    "medium",
			RequestIDs:  ids,
		})
	}

	return report, nil
}

func selfApprovals(requests []*models.ApprovalRequest) []string {
	ids := make([]string, 0)

	for _, request := range requests {
		for _, action := range request.Approvals {
			if action.Action == models.ActionApprove && action.ApproverID == request.RequesterID {
				ids = append(ids, request.ID)

				break
			}
		}
	}

	return ids
}

// repeatApprovers flags requests where the same human approved at more than
// one level. System actions are exempt.
func repeatApprovers(requests []*models.ApprovalRequest) []string {
	ids := make([]string, 0)

	for _, request := range requests {
		levelsByUser := make(map[string]map[int]bool)
		flagged := false

		for _, action := range request.Approvals {
			if action.Action != models.ActionApprove || action.ApproverID == models.SystemActor {
				continue
			}

			if levelsByUser[action.ApproverID] == nil {
				levelsByUser[action.ApproverID] = make(map[int]bool)
			}

			levelsByUser[action.ApproverID][action.Level] = true

			if len(levelsByUser[action.ApproverID]) > 1 {
				flagged = true
			}
		}

		if flagged {
			ids = append(ids, request.ID)
		}
	}

	return ids
}
