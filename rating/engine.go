// Package rating computes multiplayer rating updates for one finished match.
//
// Each participant brings a rating and the place they finished.  The engine
// works out where the logistic model expected them to finish, reconciles that
// with where they actually finished, binary-searches the rating that would
// have produced the reconciled place (the performance rating), and moves each
// rating half way toward its performance rating.
//
// Intermediate values are decimals with explicit rounding modes so that the
// same inputs give the same outputs on every platform:
//
//	win probability      half-down, 4 digits
//	lose probability     half-up,   4 digits
//	expected rank        half-down, 4 digits
//	reconciled rank      half-up,   4 digits
//	search midpoint      half-up,   4 digits
//	performance rating   truncated to an integer
//
// An Engine rates exactly one match.  Build a new one for the next match; the
// probability memo it carries must not leak between matches.
package rating

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for participant lists the engine can't rate.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultMaxRating = 5000
	DefaultTolerance = 0.1
	DefaultPrecision = 4
	DefaultCacheSize = 1 << 20
)

// Participant is one competitor in a match.
//
// On input, ChangeScore is ignored.  On output, CurrentRating holds the
// post-match rating and ChangeScore the signed difference.
type Participant struct {
	ID            int64
	CurrentRating float64
	MatchRank     int
	ChangeScore   float64
}

// Options tunes the engine.  The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// MaxRating is the top of the performance rating search range.
	MaxRating float64
	// Tolerance ends the search once the range is narrower than this.
	Tolerance float64
	// Precision is the number of fractional digits kept by every rounding step.
	Precision int32
	// CacheSize caps the probability memo.  Zero or less means "as large as
	// one match can need".
	CacheSize int
	// DisableCache computes every probability from scratch.  Results are the
	// same either way.
	DisableCache bool
	// Trace, if set, receives a debug record for every intermediate value.
	Trace *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxRating: DefaultMaxRating,
		Tolerance: DefaultTolerance,
		Precision: DefaultPrecision,
		CacheSize: DefaultCacheSize,
	}
}

// MaxIterations is the most bisection steps one participant's search can
// take with these options.
func (o Options) MaxIterations() int {
	return int(math.Ceil(math.Log2(o.MaxRating/o.Tolerance))) + 1
}

func (o Options) validate() error {
	switch {
	case math.IsNaN(o.MaxRating) || math.IsInf(o.MaxRating, 0) || o.MaxRating <= 0:
		return fmt.Errorf("%w: max rating must be positive, got %v", ErrInvalidInput, o.MaxRating)
	case math.IsNaN(o.Tolerance) || math.IsInf(o.Tolerance, 0) || o.Tolerance <= 0:
		return fmt.Errorf("%w: tolerance must be positive, got %v", ErrInvalidInput, o.Tolerance)
	case o.Precision < 0:
		return fmt.Errorf("%w: precision must not be negative, got %d", ErrInvalidInput, o.Precision)
	}
	return nil
}

// Stats counts the work done by one engine.
type Stats struct {
	CacheHits        int
	CacheMisses      int
	Uncached         int
	SearchIterations int
}

// Breakdown is the working state of one participant after a run.
type Breakdown struct {
	ID                int64
	ExpectedRank      decimal.Decimal
	ReconciledRank    decimal.Decimal
	PerformanceRating int64
	Iterations        int
}

// Engine rates one match.
type Engine struct {
	mu sync.Mutex

	participants []Participant
	ratings      []decimal.Decimal
	precision    int32
	maxRating    decimal.Decimal
	tolerance    decimal.Decimal
	probs        *probabilities
	trace        *slog.Logger

	results   map[int64]Participant
	breakdown []Breakdown
	stats     Stats
}

// New validates the participants and prepares an engine for them.  The slice
// is copied; the caller may reuse it.
func New(participants []Participant, opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrInvalidInput)
	}

	seen := make(map[int64]struct{}, len(participants))
	ratings := make([]decimal.Decimal, len(participants))
	for i, p := range participants {
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate participant id %d", ErrInvalidInput, p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.MatchRank < 1 {
			return nil, fmt.Errorf("%w: participant %d has rank %d", ErrInvalidInput, p.ID, p.MatchRank)
		}
		if math.IsNaN(p.CurrentRating) || math.IsInf(p.CurrentRating, 0) {
			return nil, fmt.Errorf("%w: participant %d has rating %v", ErrInvalidInput, p.ID, p.CurrentRating)
		}
		ratings[i] = ratingDecimal(p.CurrentRating)
	}

	probs, err := newProbabilities(cacheSize(opts, len(participants)), opts.Precision)
	if err != nil {
		return nil, fmt.Errorf("can't create probability cache: %w", err)
	}

	return &Engine{
		participants: append([]Participant(nil), participants...),
		ratings:      ratings,
		precision:    opts.Precision,
		maxRating:    ratingDecimal(opts.MaxRating),
		tolerance:    ratingDecimal(opts.Tolerance),
		probs:        probs,
		trace:        opts.Trace,
	}, nil
}

// cacheSize bounds the memo by what one match can actually put in it: every
// ordered pair in the rank stage plus every (participant, midpoint) pair in
// the search, each stored with its reverse.
func cacheSize(opts Options, n int) int {
	if opts.DisableCache {
		return 0
	}
	need := 2 * n * (n - 1) * (opts.MaxIterations() + 1)
	if opts.CacheSize > 0 {
		need = min(need, opts.CacheSize)
	}
	return max(need, 1)
}

// Calculate runs every stage over the whole match and returns the updated
// participants keyed by id.  Calling it again returns the same answer without
// recomputing it.
func (e *Engine) Calculate() (map[int64]Participant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.results == nil {
		expected := e.expectedRanks()
		reconciled := e.reconciledRanks(expected)
		searched := e.performanceRatings(reconciled)
		updated := e.updatedParticipants(searched)

		e.results = make(map[int64]Participant, len(updated))
		e.breakdown = make([]Breakdown, len(updated))
		for i, p := range updated {
			e.results[p.ID] = p
			e.breakdown[i] = Breakdown{
				ID:                p.ID,
				ExpectedRank:      expected[i],
				ReconciledRank:    reconciled[i],
				PerformanceRating: searched[i].rating,
				Iterations:        searched[i].iterations,
			}
			e.stats.SearchIterations += searched[i].iterations
		}
		e.stats.CacheHits = e.probs.hits
		e.stats.CacheMisses = e.probs.misses
		e.stats.Uncached = e.probs.uncached
	}

	out := make(map[int64]Participant, len(e.results))
	for id, p := range e.results {
		out[id] = p
	}
	return out, nil
}

// Breakdown returns the per-participant working state in input order, or nil
// before Calculate has run.
func (e *Engine) Breakdown() []Breakdown {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Breakdown(nil), e.breakdown...)
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Calculate rates one match with a throwaway engine.
func Calculate(participants []Participant, opts Options) (map[int64]Participant, error) {
	e, err := New(participants, opts)
	if err != nil {
		return nil, err
	}
	return e.Calculate()
}

func (e *Engine) tracing() bool {
	return e.trace != nil
}
