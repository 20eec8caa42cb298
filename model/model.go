package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Player is someone with a rating.
type Player struct {
	PlayerID       int64 `json:"playerId"`
	OptimisticLock int64 `json:"-"`

	Nick          string     `json:"nick"`
	Rating        float64    `json:"rating"`
	MatchesPlayed int        `json:"matchesPlayed"`
	LastPlayedAt  *time.Time `json:"lastPlayedAt,omitempty"`
}

func (p *Player) Clone() *Player {
	c := *p
	if p.LastPlayedAt != nil {
		t := *p.LastPlayedAt
		c.LastPlayedAt = &t
	}
	return &c
}

// Entry is one line of a match report: who, and where they finished.
type Entry struct {
	PlayerID int64 `json:"playerId"`
	Rank     int   `json:"rank"`
}

// ValidateEntries checks the things a match report must get right before any
// rating is looked up.
func ValidateEntries(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("match has no entries")
	}
	seen := map[int64]struct{}{}
	for _, e := range entries {
		if _, ok := seen[e.PlayerID]; ok {
			return fmt.Errorf("player %d appears more than once", e.PlayerID)
		}
		seen[e.PlayerID] = struct{}{}
		if e.Rank < 1 {
			return fmt.Errorf("player %d has rank %d, ranks start at 1", e.PlayerID, e.Rank)
		}
	}
	return nil
}

// Result is what one match did to one player.
type Result struct {
	PlayerID          int64   `json:"playerId"`
	Rank              int     `json:"rank"`
	RatingBefore      float64 `json:"ratingBefore"`
	RatingAfter       float64 `json:"ratingAfter"`
	ChangeScore       float64 `json:"change"`
	PerformanceRating int64   `json:"performanceRating"`
}

// Match is a rated match.  MatchID is assigned by storage; MatchKey is
// assigned when the match is rated and survives export and import.
type Match struct {
	MatchID  int64     `json:"matchId"`
	MatchKey uuid.UUID `json:"matchKey"`
	PlayedAt time.Time `json:"playedAt"`
	Results  []*Result `json:"results"`
}

func (m *Match) Clone() *Match {
	c := *m
	c.Results = make([]*Result, len(m.Results))
	for i, r := range m.Results {
		rc := *r
		c.Results[i] = &rc
	}
	return &c
}

// Slug summarizes the match for listings.
func (m *Match) Slug() *MatchSlug {
	return &MatchSlug{
		MatchID:      m.MatchID,
		MatchKey:     m.MatchKey,
		PlayedAt:     m.PlayedAt,
		Participants: len(m.Results),
	}
}

// MatchSlug is the lightweight form of a match used in lists.
type MatchSlug struct {
	MatchID      int64     `json:"matchId"`
	MatchKey     uuid.UUID `json:"matchKey"`
	PlayedAt     time.Time `json:"playedAt"`
	Participants int       `json:"participants"`
}
