package automation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mandala/approvals/pkg/automation"
	"github.com/mandala/approvals/pkg/models"
)

func txc(amount float64) models.TransactionContext {
	return models.TransactionContext{
		Transaction: &models.Transaction{ID: "txn-1", Amount: amount},
		Now:         time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), // Tuesday
	}
}

func TestConfidence_SingleClauseFullMatch(t *testing.T) {
	t.Parallel()

	conditions := models.RuleConditions{
		AmountRange: &models.AmountRange{Min: 100, Max: 1000},
	}

	assert.InDelta(t, 1.0, automation.Confidence(conditions, txc(500)), 1e-9)
	assert.InDelta(t, 0.0, automation.Confidence(conditions, txc(1500)), 1e-9)
}

func TestConfidence_OnlyDeclaredClausesWeigh(t *testing.T) {
	t.Parallel()

	conditions := models.RuleConditions{
		AmountRange: &models.AmountRange{Min: 100, Max: 1000},
		UserTiers:   []string{"gold"},
	}

	context := txc(500)
	context.UserTier = "silver"

	// amount (25) matched out of amount+tier (45) declared.
	assert.InDelta(t, 25.0/45.0, automation.Confidence(conditions, context), 1e-9)

	context.UserTier = "gold"
	assert.InDelta(t, 1.0, automation.Confidence(conditions, context), 1e-9)
}

func TestConfidence_TimeRestrictions(t *testing.T) {
	t.Parallel()

	conditions := models.RuleConditions{
		TimeRestrictions: &models.TimeRestrictions{
			AllowedHours: []int{9, 10, 11, 12, 13, 14},
			AllowedDays:  []int{1, 2, 3, 4, 5},
		},
	}

	context := txc(500)
	assert.InDelta(t, 1.0, automation.Confidence(conditions, context), 1e-9)

	context.Now = time.Date(2026, 3, 8, 14, 0, 0, 0, time.UTC) // Sunday
	assert.InDelta(t, 0.0, automation.Confidence(conditions, context), 1e-9)
}

func TestConfidence_HistoryRequiresData(t *testing.T) {
	t.Parallel()

	conditions := models.RuleConditions{
		UserHistory: &models.HistoryThresholds{
			MinSuccessfulTransactions: 5,
			MaxRejectedInPeriod:       1,
			PeriodDays:                30,
		},
	}

	context := txc(500)
	assert.InDelta(t, 0.0, automation.Confidence(conditions, context), 1e-9, "absent history never matches")

	context.History = &models.UserHistory{SuccessfulTransactions: 10}
	assert.InDelta(t, 1.0, automation.Confidence(conditions, context), 1e-9)

	context.History.RejectedTransactions = 3
	assert.InDelta(t, 0.0, automation.Confidence(conditions, context), 1e-9)
}

func TestConfidence_NoDeclaredClauses(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, automation.Confidence(models.RuleConditions{}, txc(500)), 1e-9)
}
