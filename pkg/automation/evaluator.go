// Package automation scores approval requests against configurable rules and
// decides whether a request can skip human review.
package automation

import (
	"slices"

	"github.com/mandala/approvals/pkg/models"
)

// Clause weights for confidence scoring. Only clauses a rule declares
// contribute to its denominator, so a single-clause rule that matches scores
// a full 1.0.
const (
	weightAmount  = 25.0
	weightTier    = 20.0
	weightVenue   = 15.0
	weightTime    = 15.0
	weightHistory = 25.0
)

// DefaultConfidenceThreshold is the minimum confidence for a rule to act.
const DefaultConfidenceThreshold = 0.8

// Confidence returns the weighted share of declared clauses the transaction
// matches, in [0, 1]. A rule with no declared clauses scores 0.
func Confidence(conditions models.RuleConditions, txc models.TransactionContext) float64 {
	total := 0.0
	matched := 0.0

	if conditions.AmountRange != nil {
		total += weightAmount
		if matchesAmount(conditions.AmountRange, txc.Transaction.Amount) {
			matched += weightAmount
		}
	}

	if len(conditions.UserTiers) > 0 {
		total += weightTier
		if slices.Contains(conditions.UserTiers, txc.UserTier) {
			matched += weightTier
		}
	}

	if len(conditions.VenueTypes) > 0 {
		total += weightVenue
		if slices.Contains(conditions.VenueTypes, txc.VenueType) {
			matched += weightVenue
		}
	}

	if conditions.TimeRestrictions != nil {
		total += weightTime
		if matchesTime(conditions.TimeRestrictions, txc) {
			matched += weightTime
		}
	}

	if conditions.UserHistory != nil {
		total += weightHistory
		if matchesHistory(conditions.UserHistory, txc.History) {
			matched += weightHistory
		}
	}

	if total == 0 {
		return 0
	}

	return matched / total
}

func matchesAmount(bounds *models.AmountRange, amount float64) bool {
	return amount >= bounds.Min && amount <= bounds.Max
}

func matchesTime(restrictions *models.TimeRestrictions, txc models.TransactionContext) bool {
	now := txc.Now

	if len(restrictions.AllowedHours) > 0 && !slices.Contains(restrictions.AllowedHours, now.Hour()) {
		return false
	}

	if len(restrictions.AllowedDays) > 0 && !slices.Contains(restrictions.AllowedDays, int(now.Weekday())) {
		return false
	}

	return true
}

// matchesHistory holds only when history data is present; an absent history
// never satisfies a history clause.
func matchesHistory(thresholds *models.HistoryThresholds, history *models.UserHistory) bool {
	if history == nil {
		return false
	}

	if history.SuccessfulTransactions < thresholds.MinSuccessfulTransactions {
		return false
	}

	if thresholds.MaxRejectedInPeriod > 0 && history.RejectedTransactions > thresholds.MaxRejectedInPeriod {
		return false
	}

	return true
}
