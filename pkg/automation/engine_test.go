package automation_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandala/approvals/pkg/automation"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_FirstConfidentRuleDecides(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.AutomationRules().Save(ctx, &models.AutomationRule{
		ID:       "rule-low",
		Name:     "Auto-approve small payments",
		Priority: 1,
		Enabled:  true,
		Conditions: models.RuleConditions{
			AmountRange: &models.AmountRange{Min: 0, Max: 1000},
		},
		Actions: models.RuleActions{AutoApprove: true},
	}))
	require.NoError(t, store.AutomationRules().Save(ctx, &models.AutomationRule{
		ID:       "rule-wide",
		Name:     "Auto-approve anything",
		Priority: 2,
		Enabled:  true,
		Conditions: models.RuleConditions{
			AmountRange: &models.AmountRange{Min: 0, Max: 100000},
		},
		Actions: models.RuleActions{AutoApprove: true},
	}))

	engine := automation.NewEngine(store.AutomationRules(), testLogger())

	decision, err := engine.Decide(ctx, models.TransactionContext{
		Transaction: &models.Transaction{ID: "txn-1", Amount: 500},
		Now:         time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, decision)

	// Both rules match; the lower priority value wins exclusively.
	assert.Equal(t, "rule-low", decision.Rule.ID)
	assert.InDelta(t, 1.0, decision.Confidence, 1e-9)
}

func TestEngine_NoRuleBelowThreshold(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.AutomationRules().Save(ctx, &models.AutomationRule{
		ID:      "rule-low",
		Name:    "Auto-approve small payments",
		Enabled: true,
		Conditions: models.RuleConditions{
			AmountRange: &models.AmountRange{Min: 0, Max: 1000},
		},
		Actions: models.RuleActions{AutoApprove: true},
	}))

	engine := automation.NewEngine(store.AutomationRules(), testLogger())

	decision, err := engine.Decide(ctx, models.TransactionContext{
		Transaction: &models.Transaction{ID: "txn-1", Amount: 1500},
		Now:         time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Nil(t, decision, "request continues to human review")
}

func TestEngine_SkipsInvalidRules(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.AutomationRules().Save(ctx, &models.AutomationRule{
		ID:       "rule-bad",
		Name:     "Conflicting",
		Priority: 1,
		Enabled:  true,
		Conditions: models.RuleConditions{
			AmountRange: &models.AmountRange{Min: 0, Max: 1000},
		},
		Actions: models.RuleActions{AutoApprove: true, AutoReject: true},
	}))
	require.NoError(t, store.AutomationRules().Save(ctx, &models.AutomationRule{
		ID:       "rule-good",
		Name:     "Auto-approve small payments",
		Priority: 2,
		Enabled:  true,
		Conditions: models.RuleConditions{
			AmountRange: &models.AmountRange{Min: 0, Max: 1000},
		},
		Actions: models.RuleActions{AutoApprove: true},
	}))

	engine := automation.NewEngine(store.AutomationRules(), testLogger())

	decision, err := engine.Decide(ctx, models.TransactionContext{
		Transaction: &models.Transaction{ID: "txn-1", Amount: 500},
		Now:         time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, "rule-good", decision.Rule.ID)
}

func TestValidateRuleDocument(t *testing.T) {
	t.Parallel()

	valid := []byte(`{
		"name": "Small payments",
		"enabled": true,
		"conditions": {"amount_range": {"min": 0, "max": 1000}},
		"actions": {"auto_approve": true}
	}`)
	assert.NoError(t, automation.ValidateRuleDocument(valid))

	missingName := []byte(`{
		"conditions": {"amount_range": {"min": 0, "max": 1000}},
		"actions": {"auto_approve": true}
	}`)
	assert.Error(t, automation.ValidateRuleDocument(missingName))

	badHour := []byte(`{
		"name": "Night rule",
		"conditions": {"time_restrictions": {"allowed_hours": [25]}},
		"actions": {"auto_reject": true}
	}`)
	assert.Error(t, automation.ValidateRuleDocument(badHour))
}
