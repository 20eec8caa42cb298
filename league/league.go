// Package league rates matches between registered players and keeps their
// ratings in storage.
package league

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ts4z/placerank/he"
	"github.com/ts4z/placerank/model"
	"github.com/ts4z/placerank/rating"
	"github.com/ts4z/placerank/state"
	"github.com/ts4z/placerank/ts"
)

// Recorder hears about every engine run.  metrics.Metrics is one.
type Recorder interface {
	RecordRating(mode string, participants int, stats rating.Stats, elapsed time.Duration)
}

const (
	ModeRate    = "rate"
	ModePreview = "preview"
	ModeRecord  = "record"
)

type Config struct {
	Storage       state.Storage
	Clock         *ts.Clock
	Options       rating.Options
	InitialRating float64
	Recorder      Recorder
}

type Manager struct {
	// Held from the moment ratings are read until the match is saved, so
	// two matches in this process never rate from the same snapshot.
	recordLock sync.Mutex

	storage       state.Storage
	clock         *ts.Clock
	opts          rating.Options
	initialRating float64
	recorder      Recorder
}

func New(c Config) *Manager {
	return &Manager{
		storage:       c.Storage,
		clock:         c.Clock,
		opts:          c.Options,
		initialRating: c.InitialRating,
		recorder:      c.Recorder,
	}
}

// Rated is the outcome of a stateless rating request.
type Rated struct {
	Participants []rating.Participant
	Breakdown    []rating.Breakdown
}

// Rate runs the engine over participants that carry their own ratings.
// Nothing is read from or written to storage.  The result keeps the input
// order.
func (m *Manager) Rate(ctx context.Context, participants []rating.Participant) (*Rated, error) {
	e, results, err := m.run(ModeRate, participants)
	if err != nil {
		return nil, err
	}
	out := &Rated{
		Participants: make([]rating.Participant, len(participants)),
		Breakdown:    e.Breakdown(),
	}
	for i, p := range participants {
		out.Participants[i] = results[p.ID]
	}
	return out, nil
}

// Preview rates a match against the stored ratings without saving it.
func (m *Manager) Preview(ctx context.Context, entries []model.Entry) (*model.Match, error) {
	match, _, err := m.rateEntries(ctx, ModePreview, entries)
	return match, err
}

// Record rates a match and saves it, updating every player in it.  Players
// nobody has seen before are created at the initial rating.
func (m *Manager) Record(ctx context.Context, entries []model.Entry) (*model.Match, error) {
	m.recordLock.Lock()
	defer m.recordLock.Unlock()

	match, snapshot, err := m.rateEntries(ctx, ModeRecord, entries)
	if err != nil {
		return nil, err
	}
	match.MatchKey = uuid.New()
	match.PlayedAt = m.clock.Now()

	id, err := m.storage.SaveMatch(ctx, match, snapshot)
	if err != nil {
		return nil, fmt.Errorf("can't save match: %w", err)
	}
	match.MatchID = id
	log.Printf("recorded match %d (%v) with %d players", id, match.MatchKey, len(match.Results))
	return match, nil
}

func (m *Manager) rateEntries(ctx context.Context, mode string, entries []model.Entry) (*model.Match, map[int64]*model.Player, error) {
	if err := model.ValidateEntries(entries); err != nil {
		return nil, nil, he.New(http.StatusBadRequest, err)
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.PlayerID
	}
	snapshot, err := m.storage.FetchPlayers(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("can't fetch players: %w", err)
	}

	participants := make([]rating.Participant, len(entries))
	for i, e := range entries {
		r := m.initialRating
		if p, ok := snapshot[e.PlayerID]; ok {
			r = p.Rating
		}
		participants[i] = rating.Participant{ID: e.PlayerID, CurrentRating: r, MatchRank: e.Rank}
	}

	e, results, err := m.run(mode, participants)
	if err != nil {
		return nil, nil, err
	}

	breakdown := e.Breakdown()
	match := &model.Match{Results: make([]*model.Result, len(participants))}
	for i, p := range participants {
		after := results[p.ID]
		match.Results[i] = &model.Result{
			PlayerID:          p.ID,
			Rank:              p.MatchRank,
			RatingBefore:      p.CurrentRating,
			RatingAfter:       after.CurrentRating,
			ChangeScore:       after.ChangeScore,
			PerformanceRating: breakdown[i].PerformanceRating,
		}
	}
	return match, snapshot, nil
}

func (m *Manager) run(mode string, participants []rating.Participant) (*rating.Engine, map[int64]rating.Participant, error) {
	e, err := rating.New(participants, m.opts)
	if err != nil {
		return nil, nil, err
	}
	start := m.clock.RealClock().Now()
	results, err := e.Calculate()
	if err != nil {
		return nil, nil, err
	}
	if m.recorder != nil {
		m.recorder.RecordRating(mode, len(participants), e.Stats(), m.clock.RealClock().Since(start))
	}
	return e, results, nil
}
