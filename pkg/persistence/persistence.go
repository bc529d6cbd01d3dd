// Package persistence provides the data storage abstraction for the approval
// engine. All writes are atomic per aggregate; ApprovalRequest updates carry
// an optimistic version check.
package persistence

import (
	"context"
	"time"

	"github.com/mandala/approvals/pkg/models"
)

type Persistence interface {
	ApprovalRequests() ApprovalRequestRepository
	Workflows() WorkflowRepository
	Delegations() DelegationRepository
	AutomationRules() AutomationRuleRepository
	EscalationTriggers() EscalationTriggerRepository
	Audit() AuditRepository
	Reconciliation() ReconciliationRepository
	Transactions() TransactionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ApprovalRequestRepository stores the mutable aggregate roots. Update must
// fail with ErrVersionConflict when the stored version does not match the
// version the caller read, so the engine can reload and retry atomically.
type ApprovalRequestRepository interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	Update(ctx context.Context, request *models.ApprovalRequest) error
	ListOverdue(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error)
	ListActive(ctx context.Context) ([]*models.ApprovalRequest, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*models.ApprovalRequest, error)
}

type WorkflowRepository interface {
	ListActive(ctx context.Context) ([]*models.ApprovalWorkflow, error)
	GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error)
	Save(ctx context.Context, workflow *models.ApprovalWorkflow) error
	Delete(ctx context.Context, id string) error
}

type DelegationRepository interface {
	Create(ctx context.Context, rule *models.DelegationRule) error
	GetByID(ctx context.Context, id string) (*models.DelegationRule, error)
	ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*models.DelegationRule, error)
	Revoke(ctx context.Context, id string) error
}

type AutomationRuleRepository interface {
	ListEnabled(ctx context.Context) ([]*models.AutomationRule, error)
	GetByID(ctx context.Context, id string) (*models.AutomationRule, error)
	Save(ctx context.Context, rule *models.AutomationRule) error
	Delete(ctx context.Context, id string) error
}

type EscalationTriggerRepository interface {
	ListEnabled(ctx context.Context) ([]*models.EscalationTrigger, error)
	Save(ctx context.Context, trigger *models.EscalationTrigger) error
}

// AuditRepository is append-only: records are never mutated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	List(ctx context.Context, query AuditQuery) ([]*models.AuditRecord, error)
}

// AuditQuery filters audit records; zero values mean no filter.
type AuditQuery struct {
	Start      time.Time
	End        time.Time
	EntityID   string
	ActorID    string
	ChangeType models.ChangeType
	Limit      int
}

// ReconciliationRepository stores batch runs and entries. Entries are
// append-only; resolution creates a new entry referencing the original.
type ReconciliationRepository interface {
	SaveRun(ctx context.Context, run *models.DailyReconciliation) error
	GetRun(ctx context.Context, provider models.Provider, date string) (*models.DailyReconciliation, error)
	CreateEntry(ctx context.Context, entry *models.ReconciliationEntry) error
	GetEntry(ctx context.Context, id string) (*models.ReconciliationEntry, error)
	ListUnresolved(ctx context.Context, provider models.Provider) ([]*models.ReconciliationEntry, error)
	SaveSettlement(ctx context.Context, report *models.SettlementReport) error
	LastSettlement(ctx context.Context, provider models.Provider) (*models.SettlementReport, error)
}

// TransactionRepository reads internally recorded transactions. The engine
// never writes transactions; settlement of approved transactions is a
// downstream concern.
type TransactionRepository interface {
	GetByProviderAndDate(ctx context.Context, provider models.Provider, date string) ([]*models.Transaction, error)
	ListUnreconciled(ctx context.Context, provider models.Provider, since time.Time) ([]*models.Transaction, error)
	UserHistory(ctx context.Context, userID string, since time.Time) (*models.UserHistory, error)
}
