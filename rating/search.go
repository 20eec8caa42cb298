package rating

import (
	"github.com/shopspring/decimal"
)

type searchResult struct {
	rating     int64
	iterations int
}

func (e *Engine) performanceRatings(reconciled []decimal.Decimal) []searchResult {
	out := make([]searchResult, len(e.participants))
	for i := range e.participants {
		out[i] = e.searchPerformance(i, reconciled[i])
	}
	return out
}

// searchPerformance bisects [0, maxRating] for the rating that would have
// given participant i the reconciled rank against everyone else as they
// stand.  It stops on an exact match or once the range is narrower than the
// tolerance, and truncates the last midpoint.  If the range starts out
// narrower than the tolerance, the answer is the bottom of the range.
//
// The trial rank is compared with the exact binary value of the reconciled
// rank as a float64, not with its 4-digit decimal, so an exact match is rare.
func (e *Engine) searchPerformance(i int, reconciled decimal.Decimal) searchResult {
	id := e.participants[i].ID
	target := exactDecimal(reconciled.InexactFloat64())
	low := decimal.Zero
	top := e.maxRating
	mid := low
	iterations := 0

	for top.Sub(low).GreaterThanOrEqual(e.tolerance) {
		iterations++
		mid = top.Sub(low).DivRound(two, e.precision).Add(low)
		cmp := e.trialRank(i, mid).Cmp(target)
		if cmp == 0 {
			if e.tracing() {
				e.trace.Debug("performance search hit", "id", id, "mid", mid)
			}
			break
		}
		if cmp < 0 {
			// Expected to finish better than reconciled: mid is too high.
			top = mid
		} else {
			low = mid
		}
		if e.tracing() {
			e.trace.Debug("performance search", "id", id,
				"iteration", iterations, "low", low, "top", top, "mid", mid, "high", cmp < 0)
		}
	}

	r := searchResult{rating: mid.IntPart(), iterations: iterations}
	if e.tracing() {
		e.trace.Debug("performance rating", "id", id, "rating", r.rating, "iterations", iterations)
	}
	return r
}

// trialRank is the rank participant i would be expected to get with rating
// mid: 1 plus everyone else's chance of beating mid.
func (e *Engine) trialRank(i int, mid decimal.Decimal) decimal.Decimal {
	sum := one
	for j := range e.participants {
		if j == i {
			continue
		}
		sum = sum.Add(e.probs.win(e.ratings[j], mid))
	}
	return sum
}
