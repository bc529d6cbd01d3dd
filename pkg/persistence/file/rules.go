package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

type RuleRepository struct {
	dir string
}

// ListEnabled returns enabled automation rules sorted by ascending priority,
// the order the engine evaluates them in.
func (r *RuleRepository) ListEnabled(ctx context.Context) ([]*models.AutomationRule, error) {
	rules, err := listDocuments[models.AutomationRule](r.dir)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.AutomationRule, 0, len(rules))

	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	return enabled, nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	rule := new(models.AutomationRule)
	if err := readDocument(r.dir, id, rule, persistence.ErrRuleNotFound); err != nil {
		return nil, err
	}

	return rule, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	return writeDocument(r.dir, rule.ID, rule)
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	if !documentExists(r.dir, id) {
		return persistence.NewStoreError("Delete", id, persistence.ErrRuleNotFound)
	}

	return os.Remove(filepath.Join(r.dir, id+".json"))
}

// TriggerRepository stores escalation triggers. ListEnabled returns them in
// lexicographic id order; the scheduler applies the first trigger that fires,
// so the order is stable across scans.
type TriggerRepository struct {
	dir string
}

func (r *TriggerRepository) ListEnabled(ctx context.Context) ([]*models.EscalationTrigger, error) {
	triggers, err := listDocuments[models.EscalationTrigger](r.dir)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.EscalationTrigger, 0, len(triggers))

	for _, trigger := range triggers {
		if trigger.Enabled {
			enabled = append(enabled, trigger)
		}
	}

	return enabled, nil
}

func (r *TriggerRepository) Save(ctx context.Context, trigger *models.EscalationTrigger) error {
	return writeDocument(r.dir, trigger.ID, trigger)
}
