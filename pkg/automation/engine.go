package automation

import (
	"context"
	"log/slog"
	"sort"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// Decision is the outcome of rule evaluation for one transaction. A nil
// decision means no rule fired and the request proceeds to human review.
type Decision struct {
	Rule       *models.AutomationRule
	Confidence float64
}

// Engine evaluates enabled automation rules in priority order. The first rule
// whose confidence reaches the threshold decides exclusively; later rules are
// not consulted.
type Engine struct {
	rules     persistence.AutomationRuleRepository
	threshold float64
	logger    *slog.Logger
}

func NewEngine(rules persistence.AutomationRuleRepository, logger *slog.Logger) *Engine {
	return &Engine{
		rules:     rules,
		threshold: DefaultConfidenceThreshold,
		logger:    logger.With("module", "automation"),
	}
}

// WithThreshold overrides the confidence threshold, clamped to (0, 1].
func (e *Engine) WithThreshold(threshold float64) *Engine {
	if threshold > 0 && threshold <= 1 {
		e.threshold = threshold
	}

	return e
}

// Decide scores the transaction against every enabled rule and returns the
// first confident match by ascending rule priority. Rules that fail to
// evaluate are skipped so a single bad rule cannot block request creation.
func (e *Engine) Decide(ctx context.Context, txc models.TransactionContext) (*Decision, error) {
	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			e.logger.WarnContext(ctx, "Skipping invalid automation rule", "rule_id", rule.ID, "error", err)

			continue
		}

		confidence := Confidence(rule.Conditions, txc)
		if confidence >= e.threshold {
			e.logger.InfoContext(ctx, "Automation rule fired",
				"rule_id", rule.ID, "confidence", confidence, "transaction_id", txc.Transaction.ID)

			return &Decision{Rule: rule, Confidence: confidence}, nil
		}
	}

	return nil, nil
}
