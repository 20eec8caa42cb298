package rating

import (
	"math"

	"github.com/shopspring/decimal"
)

// expectedRanks is 1 plus the chance of losing to each other participant,
// summed.  A lone participant is expected to finish first.
func (e *Engine) expectedRanks() []decimal.Decimal {
	out := make([]decimal.Decimal, len(e.participants))
	for i, p := range e.participants {
		sum := one
		for j, q := range e.participants {
			if i == j {
				continue
			}
			lose := e.probs.lose(e.ratings[i], e.ratings[j])
			sum = sum.Add(lose)
			if e.tracing() {
				e.trace.Debug("lose probability", "id", p.ID, "against", q.ID, "p", lose)
			}
		}
		out[i] = roundHalfDown(sum, e.precision)
		if e.tracing() {
			e.trace.Debug("expected rank", "id", p.ID, "rank", out[i])
		}
	}
	return out
}

// reconciledRanks takes the geometric mean of the expected and actual ranks.
func (e *Engine) reconciledRanks(expected []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(e.participants))
	for i, p := range e.participants {
		root := math.Sqrt(expected[i].InexactFloat64() * float64(p.MatchRank))
		out[i] = roundHalfUp(exactDecimal(root), e.precision)
		if e.tracing() {
			e.trace.Debug("reconciled rank", "id", p.ID,
				"expected", expected[i], "actual", p.MatchRank, "reconciled", out[i])
		}
	}
	return out
}
