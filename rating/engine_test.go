package rating

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ts4z/placerank/ick"
)

func mustCalculate(t *testing.T, ps []Participant, opts Options) (map[int64]Participant, *Engine) {
	t.Helper()
	e, err := New(ps, opts)
	require.NoError(t, err)
	out, err := e.Calculate()
	require.NoError(t, err)
	return out, e
}

func randomField(seed int64, n int) []Participant {
	r := rand.New(rand.NewSource(seed))
	ps := make([]Participant, n)
	for i := range ps {
		ps[i] = Participant{
			ID:            int64(100 + i),
			CurrentRating: float64(800 + r.Intn(2000)),
			MatchRank:     1 + r.Intn(n),
		}
	}
	return ps
}

func TestInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		ps   []Participant
		opts Options
	}{
		{"empty", nil, DefaultOptions()},
		{"duplicate id", []Participant{{ID: 1, CurrentRating: 1500, MatchRank: 1}, {ID: 1, CurrentRating: 1400, MatchRank: 2}}, DefaultOptions()},
		{"zero rank", []Participant{{ID: 1, CurrentRating: 1500, MatchRank: 0}}, DefaultOptions()},
		{"NaN rating", []Participant{{ID: 1, CurrentRating: math.NaN(), MatchRank: 1}}, DefaultOptions()},
		{"zero tolerance", []Participant{{ID: 1, CurrentRating: 1500, MatchRank: 1}}, Options{MaxRating: 5000, Precision: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Calculate(tt.ps, tt.opts)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
			assert.Nil(t, out)
		})
	}
}

func TestTwoEqualPlayers(t *testing.T) {
	out, e := mustCalculate(t, []Participant{
		{ID: 1, CurrentRating: 1500, MatchRank: 1},
		{ID: 2, CurrentRating: 1500, MatchRank: 2},
	}, DefaultOptions())

	winner, loser := out[1], out[2]
	assert.Greater(t, winner.ChangeScore, 0.0)
	assert.Less(t, loser.ChangeScore, 0.0)
	assert.Equal(t, 1500+winner.ChangeScore, winner.CurrentRating)
	assert.Equal(t, 1500+loser.ChangeScore, loser.CurrentRating)
	assert.Equal(t, 1, winner.MatchRank)
	assert.Equal(t, 2, loser.MatchRank)

	// Reconciled ranks are sqrt(1.5) and sqrt(3), so the moves are close to
	// but not exactly mirror images.
	bd := e.Breakdown()
	assert.True(t, bd[0].ExpectedRank.Equal(decimal.RequireFromString("1.5")), "expected %s", bd[0].ExpectedRank)
	assert.True(t, bd[0].ReconciledRank.Equal(decimal.RequireFromString("1.2247")), "reconciled %s", bd[0].ReconciledRank)
	assert.True(t, bd[1].ReconciledRank.Equal(decimal.RequireFromString("1.7321")), "reconciled %s", bd[1].ReconciledRank)
	assert.InDelta(t, 107.5, winner.ChangeScore, 1)
	assert.InDelta(t, -87.5, loser.ChangeScore, 1)
}

func totalMovement(out map[int64]Participant) float64 {
	sum := 0.0
	for _, p := range out {
		sum += math.Abs(p.ChangeScore)
	}
	return sum
}

func TestFavouritesWinMovesLessThanUpset(t *testing.T) {
	expected, _ := mustCalculate(t, []Participant{
		{ID: 1, CurrentRating: 1800, MatchRank: 1},
		{ID: 2, CurrentRating: 1500, MatchRank: 2},
		{ID: 3, CurrentRating: 1200, MatchRank: 3},
	}, DefaultOptions())
	upset, _ := mustCalculate(t, []Participant{
		{ID: 1, CurrentRating: 1200, MatchRank: 1},
		{ID: 2, CurrentRating: 1500, MatchRank: 2},
		{ID: 3, CurrentRating: 1800, MatchRank: 3},
	}, DefaultOptions())

	assert.Less(t, totalMovement(expected), totalMovement(upset))
	assert.Greater(t, upset[1].ChangeScore, expected[1].ChangeScore)
	assert.Less(t, upset[3].ChangeScore, expected[3].ChangeScore)
	assert.InDelta(t, 0, expected[2].ChangeScore, 2)
}

func TestSingleParticipant(t *testing.T) {
	out, e := mustCalculate(t, []Participant{{ID: 7, CurrentRating: 1500, MatchRank: 1}}, DefaultOptions())

	bd := e.Breakdown()
	require.Len(t, bd, 1)
	assert.True(t, bd[0].ExpectedRank.Equal(one), "expected rank %s", bd[0].ExpectedRank)
	// Nobody to lose to: the first midpoint already matches.
	assert.Equal(t, int64(2500), bd[0].PerformanceRating)
	assert.Equal(t, 1, bd[0].Iterations)
	assert.Equal(t, 500.0, out[7].ChangeScore)
	assert.Equal(t, 2000.0, out[7].CurrentRating)
}

func TestEmptySearchRangeUsesLowBound(t *testing.T) {
	opts := DefaultOptions()
	opts.Tolerance = 10000
	out, e := mustCalculate(t, []Participant{
		{ID: 1, CurrentRating: 1500, MatchRank: 1},
		{ID: 2, CurrentRating: 1400, MatchRank: 2},
	}, opts)

	for _, b := range e.Breakdown() {
		assert.Equal(t, 0, b.Iterations)
		assert.Equal(t, int64(0), b.PerformanceRating)
	}
	assert.Equal(t, -750.0, out[1].ChangeScore)
	assert.Equal(t, -700.0, out[2].ChangeScore)
}

func TestIdempotent(t *testing.T) {
	ps := randomField(1, 12)
	first, e := mustCalculate(t, ps, DefaultOptions())
	second, _ := mustCalculate(t, ps, DefaultOptions())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two engines disagree (-first +second):\n%s", diff)
	}
	again, err := e.Calculate()
	require.NoError(t, err)
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("second Calculate disagrees (-first +again):\n%s", diff)
	}
}

func TestInputOrderDoesNotMatter(t *testing.T) {
	ps := randomField(4, 10)
	want, _ := mustCalculate(t, ps, DefaultOptions())
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 3; i++ {
		got, _ := mustCalculate(t, ick.Shuffle(r, ps), DefaultOptions())
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("shuffle %d changed results (-want +got):\n%s", i, diff)
		}
	}
}

func TestCacheDoesNotChangeResults(t *testing.T) {
	ps := randomField(2, 15)
	cached, e := mustCalculate(t, ps, DefaultOptions())

	opts := DefaultOptions()
	opts.DisableCache = true
	uncached, u := mustCalculate(t, ps, opts)

	if diff := cmp.Diff(cached, uncached); diff != "" {
		t.Errorf("cache changed results (-cached +uncached):\n%s", diff)
	}
	assert.Greater(t, e.Stats().CacheHits, 0)
	assert.Equal(t, 0, u.Stats().CacheHits)
	assert.Greater(t, u.Stats().Uncached, 0)

	tiny := DefaultOptions()
	tiny.CacheSize = 3
	evicting, _ := mustCalculate(t, ps, tiny)
	if diff := cmp.Diff(cached, evicting); diff != "" {
		t.Errorf("small cache changed results (-cached +evicting):\n%s", diff)
	}
}

func TestExpectedRankMonotonic(t *testing.T) {
	prev := decimal.NewFromInt(math.MaxInt32)
	for r := 800.0; r <= 2600; r += 50 {
		_, e := mustCalculate(t, []Participant{
			{ID: 1, CurrentRating: r, MatchRank: 2},
			{ID: 2, CurrentRating: 1500, MatchRank: 1},
			{ID: 3, CurrentRating: 1650, MatchRank: 3},
			{ID: 4, CurrentRating: 1320, MatchRank: 4},
		}, DefaultOptions())
		got := e.Breakdown()[0].ExpectedRank
		assert.True(t, got.LessThanOrEqual(prev), "rating %v: expected rank %s rose above %s", r, got, prev)
		prev = got
	}
}

func TestSearchConvergesAndStaysInBounds(t *testing.T) {
	opts := DefaultOptions()
	for seed := int64(10); seed < 15; seed++ {
		out, e := mustCalculate(t, randomField(seed, 20), opts)
		for _, b := range e.Breakdown() {
			assert.LessOrEqual(t, b.Iterations, opts.MaxIterations())
			assert.GreaterOrEqual(t, b.PerformanceRating, int64(0))
			assert.LessOrEqual(t, b.PerformanceRating, int64(opts.MaxRating))
		}
		for _, p := range out {
			assert.LessOrEqual(t, math.Abs(p.ChangeScore), opts.MaxRating/2)
		}
	}
	assert.Equal(t, 17, opts.MaxIterations())
}

func TestSearchTargetsBinaryReconciledRank(t *testing.T) {
	for _, tc := range []struct {
		seed       int64
		n          int
		reconciled string
		want       int64
	}{
		{207, 2, "1.0001", 2941},
		{271, 3, "2.9988", 800},
	} {
		_, e := mustCalculate(t, randomField(tc.seed, tc.n), DefaultOptions())
		found := false
		for _, b := range e.Breakdown() {
			if b.ReconciledRank.Equal(decimal.RequireFromString(tc.reconciled)) {
				found = true
				assert.Equal(t, tc.want, b.PerformanceRating, "seed %d, id %d", tc.seed, b.ID)
			}
		}
		assert.True(t, found, "seed %d: no participant reconciled to %s", tc.seed, tc.reconciled)
	}
}

func TestTiedRanksAreTakenLiterally(t *testing.T) {
	out, _ := mustCalculate(t, []Participant{
		{ID: 1, CurrentRating: 1500, MatchRank: 1},
		{ID: 2, CurrentRating: 1500, MatchRank: 1},
		{ID: 3, CurrentRating: 1500, MatchRank: 3},
	}, DefaultOptions())
	assert.Equal(t, out[1], Participant{ID: 1, CurrentRating: out[2].CurrentRating, MatchRank: 1, ChangeScore: out[2].ChangeScore})
	assert.Greater(t, out[1].ChangeScore, 0.0)
	assert.Less(t, out[3].ChangeScore, 0.0)
}

func TestTraceIsObservational(t *testing.T) {
	ps := randomField(3, 5)
	quiet, _ := mustCalculate(t, ps, DefaultOptions())

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Trace = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	loud, _ := mustCalculate(t, ps, opts)

	if diff := cmp.Diff(quiet, loud); diff != "" {
		t.Errorf("tracing changed results (-quiet +loud):\n%s", diff)
	}
	for _, want := range []string{"lose probability", "reconciled rank", "performance search", "rating update"} {
		assert.Contains(t, buf.String(), want)
	}
}

func BenchmarkCalculate(b *testing.B) {
	ps := randomField(42, 50)
	for b.Loop() {
		if _, err := Calculate(ps, DefaultOptions()); err != nil {
			b.Fatal(err)
		}
	}
}
