package reconciliation

import (
	"math"
	"time"

	"github.com/mandala/approvals/pkg/models"
)

// Confidence weights. Amount similarity dominates; timestamp proximity and a
// provider correlation id refine the score.
const (
	weightAmount     = 0.6
	weightTime       = 0.3
	weightProviderID = 0.1
)

// MatchThreshold is the minimum confidence to pair two records.
const MatchThreshold = 0.8

// discrepancyTolerance is the absolute amount difference below which a pair
// counts as matched rather than disputed.
const discrepancyTolerance = 0.01

// timeWindow is the span over which timestamp proximity decays to zero.
const timeWindow = 24 * time.Hour

// Pair is one internal transaction matched to an external record.
type Pair struct {
	Internal   *models.Transaction
	External   *models.ExternalTransaction
	Confidence float64
}

// MatchOutcome partitions one batch into pairs and leftovers on both sides.
type MatchOutcome struct {
	Pairs             []Pair
	UnmatchedInternal []*models.Transaction
	UnmatchedExternal []*models.ExternalTransaction
}

// MatchConfidence scores one candidate pairing in [0, 1].
func MatchConfidence(internal *models.Transaction, external *models.ExternalTransaction) float64 {
	score := weightAmount * amountSimilarity(internal.Amount, external.Amount)
	score += weightTime * timeProximity(internal.CreatedAt, external.ProcessedAt)

	if internal.CorrelationID() != "" && internal.CorrelationID() == external.CorrelationID {
		score += weightProviderID
	}

	return score
}

// amountSimilarity is relative to the internal amount, the side of record we
// booked. An external amount larger than ours loses the same similarity as
// one smaller by the same margin.
func amountSimilarity(internal, external float64) float64 {
	if internal == 0 {
		if external == 0 {
			return 1
		}

		return 0
	}

	similarity := 1 - math.Abs(internal-external)/math.Abs(internal)
	if similarity < 0 {
		return 0
	}

	return similarity
}

func timeProximity(a, b time.Time) float64 {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}

	if diff >= timeWindow {
		return 0
	}

	return 1 - float64(diff)/float64(timeWindow)
}

// Match pairs records greedily, one-to-one, in internal record order. Each
// internal transaction takes the best still-unclaimed external record at or
// above the threshold; on equal confidence the earlier external record wins.
func Match(internal []*models.Transaction, external []*models.ExternalTransaction) MatchOutcome {
	outcome := MatchOutcome{
		Pairs:             make([]Pair, 0),
		UnmatchedInternal: make([]*models.Transaction, 0),
		UnmatchedExternal: make([]*models.ExternalTransaction, 0),
	}

	claimed := make([]bool, len(external))

	for _, txn := range internal {
		bestIndex := -1
		best := 0.0

		for i, candidate := range external {
			if claimed[i] {
				continue
			}

			confidence := MatchConfidence(txn, candidate)
			if confidence > best {
				best = confidence
				bestIndex = i
			}
		}

		if bestIndex >= 0 && best >= MatchThreshold {
			claimed[bestIndex] = true
			outcome.Pairs = append(outcome.Pairs, Pair{
				Internal:   txn,
				External:   external[bestIndex],
				Confidence: best,
			})

			continue
		}

		outcome.UnmatchedInternal = append(outcome.UnmatchedInternal, txn)
	}

	for i, candidate := range external {
		if !claimed[i] {
			outcome.UnmatchedExternal = append(outcome.UnmatchedExternal, candidate)
		}
	}

	return outcome
}

// Disputed reports whether a discrepancy exceeds the matching tolerance.
func Disputed(discrepancy float64) bool {
	return math.Abs(discrepancy) >= discrepancyTolerance
}
