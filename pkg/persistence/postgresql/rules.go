package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

type RuleRepository struct {
	db *sql.DB
}

// ListEnabled returns enabled automation rules sorted by ascending priority,
// the order the engine evaluates them in.
func (r *RuleRepository) ListEnabled(ctx context.Context) ([]*models.AutomationRule, error) {
	query := `
		SELECT document FROM automation_rules
		WHERE enabled
		ORDER BY priority ASC, id
	`

	return queryDocuments[models.AutomationRule](ctx, r.db, query)
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	rule := new(models.AutomationRule)

	err := getDocument(ctx, r.db,
		"SELECT document FROM automation_rules WHERE id = $1",
		rule, persistence.ErrRuleNotFound, id)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	document, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule %s: %w", rule.ID, err)
	}

	query := `
		INSERT INTO automation_rules (id, enabled, priority, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority,
			document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query, rule.ID, rule.Enabled, rule.Priority, document)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automation_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted == 0 {
		return persistence.NewStoreError("Delete", id, persistence.ErrRuleNotFound)
	}

	return nil
}

// TriggerRepository stores escalation triggers. ListEnabled returns them in
// id order; the scheduler applies the first trigger that fires, so the order
// is stable across scans.
type TriggerRepository struct {
	db *sql.DB
}

func (r *TriggerRepository) ListEnabled(ctx context.Context) ([]*models.EscalationTrigger, error) {
	query := `
		SELECT document FROM escalation_triggers
		WHERE enabled
		ORDER BY id
	`

	return queryDocuments[models.EscalationTrigger](ctx, r.db, query)
}

func (r *TriggerRepository) Save(ctx context.Context, trigger *models.EscalationTrigger) error {
	document, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger %s: %w", trigger.ID, err)
	}

	query := `
		INSERT INTO escalation_triggers (id, enabled, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query, trigger.ID, trigger.Enabled, document)
	if err != nil {
		return fmt.Errorf("failed to save trigger %s: %w", trigger.ID, err)
	}

	return nil
}
