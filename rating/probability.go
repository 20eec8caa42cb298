package rating

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
)

// keyScale is the number of fractional digits kept in a cache key.  Ratings
// with more digits than this are computed every time rather than truncated
// into a key that might collide.
const keyScale = 9

var (
	maxKey = decimal.NewFromInt(math.MaxInt64)
	minKey = decimal.NewFromInt(math.MinInt64)
)

// fixedRating is a rating in units of 10^-keyScale.
type fixedRating int64

type pairKey struct {
	a, b fixedRating
}

func fixedRatingOf(d decimal.Decimal) (fixedRating, bool) {
	s := d.Shift(keyScale)
	if !s.IsInteger() || s.GreaterThan(maxKey) || s.LessThan(minKey) {
		return 0, false
	}
	return fixedRating(s.IntPart()), true
}

// probabilities is the logistic win model with its memo.  It belongs to one
// engine and is not safe for concurrent use.
type probabilities struct {
	precision int32
	cache     *lru.Cache[pairKey, decimal.Decimal] // nil when caching is off

	hits     int
	misses   int
	uncached int
}

func newProbabilities(size int, precision int32) (*probabilities, error) {
	p := &probabilities{precision: precision}
	if size > 0 {
		c, err := lru.New[pairKey, decimal.Decimal](size)
		if err != nil {
			return nil, err
		}
		p.cache = c
	}
	return p, nil
}

// logistic is the unrounded chance that a rating of a beats a rating of b.
func logistic(a, b decimal.Decimal) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, (b.InexactFloat64()-a.InexactFloat64())/400.0))
}

func (p *probabilities) compute(a, b decimal.Decimal) decimal.Decimal {
	return roundHalfDown(exactDecimal(logistic(a, b)), p.precision)
}

// win returns the rounded probability that a beats b.  The first time a pair
// is seen, both it and its reverse are remembered.
func (p *probabilities) win(a, b decimal.Decimal) decimal.Decimal {
	if p.cache == nil {
		p.uncached++
		return p.compute(a, b)
	}
	ka, okA := fixedRatingOf(a)
	kb, okB := fixedRatingOf(b)
	if !okA || !okB {
		p.uncached++
		return p.compute(a, b)
	}

	key := pairKey{ka, kb}
	if w, ok := p.cache.Get(key); ok {
		p.hits++
		return w
	}
	p.misses++
	w := p.compute(a, b)
	p.cache.Add(key, w)
	if ka != kb {
		p.cache.Add(pairKey{kb, ka}, one.Sub(w))
	}
	return w
}

// lose returns the rounded probability that a loses to b.
func (p *probabilities) lose(a, b decimal.Decimal) decimal.Decimal {
	return roundHalfUp(one.Sub(p.win(a, b)), p.precision)
}
