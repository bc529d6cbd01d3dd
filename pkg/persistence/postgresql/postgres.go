// Package postgresql provides PostgreSQL persistence for the approval engine.
// Each aggregate is stored as a JSONB document next to the columns the list
// queries filter and sort on, so documents round-trip without per-field
// column mapping.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	requests     *RequestRepository
	workflows    *WorkflowRepository
	delegations  *DelegationRepository
	rules        *RuleRepository
	triggers     *TriggerRepository
	audit        *AuditRepository
	recon        *ReconciliationRepository
	transactions *TransactionRepository
}

// NewPersistence connects to PostgreSQL and brings the schema up to date.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		requests:     &RequestRepository{db: database},
		workflows:    &WorkflowRepository{db: database},
		delegations:  &DelegationRepository{db: database},
		rules:        &RuleRepository{db: database},
		triggers:     &TriggerRepository{db: database},
		audit:        &AuditRepository{db: database},
		recon:        &ReconciliationRepository{db: database},
		transactions: &TransactionRepository{db: database},
	}, nil
}

func (p *Persistence) ApprovalRequests() persistence.ApprovalRequestRepository {
	return p.requests
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) Delegations() persistence.DelegationRepository {
	return p.delegations
}

func (p *Persistence) AutomationRules() persistence.AutomationRuleRepository {
	return p.rules
}

func (p *Persistence) EscalationTriggers() persistence.EscalationTriggerRepository {
	return p.triggers
}

func (p *Persistence) Audit() persistence.AuditRepository {
	return p.audit
}

func (p *Persistence) Reconciliation() persistence.ReconciliationRepository {
	return p.recon
}

func (p *Persistence) Transactions() persistence.TransactionRepository {
	return p.transactions
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
