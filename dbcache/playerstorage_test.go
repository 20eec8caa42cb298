package dbcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ts4z/placerank/dbnotify"
	"github.com/ts4z/placerank/model"
	"github.com/ts4z/placerank/state"
)

// countingStorage counts the reads that make it past the cache.
type countingStorage struct {
	*state.MemStorage
	fetches int
}

func (c *countingStorage) FetchPlayer(ctx context.Context, id int64) (*model.Player, error) {
	c.fetches++
	return c.MemStorage.FetchPlayer(ctx, id)
}

func (c *countingStorage) FetchPlayers(ctx context.Context, ids []int64) (map[int64]*model.Player, error) {
	c.fetches += len(ids)
	return c.MemStorage.FetchPlayers(ctx, ids)
}

func TestFetchPlayerIsCached(t *testing.T) {
	ctx := context.Background()
	next := &countingStorage{MemStorage: state.NewMemStorage()}
	next.CreatePlayer(ctx, &model.Player{PlayerID: 1, Rating: 1500})
	s := NewStorage(4, next)

	for i := 0; i < 3; i++ {
		p, err := s.FetchPlayer(ctx, 1)
		if err != nil {
			t.Fatalf("FetchPlayer: %v", err)
		}
		p.Rating = 9999 // must not leak into the cache
	}
	if next.fetches != 1 {
		t.Errorf("next layer saw %d fetches, want 1", next.fetches)
	}
	if p, _ := s.FetchPlayer(ctx, 1); p.Rating != 1500 {
		t.Errorf("cached rating = %v, want 1500", p.Rating)
	}
}

func TestFetchPlayersOnlyAsksForMisses(t *testing.T) {
	ctx := context.Background()
	next := &countingStorage{MemStorage: state.NewMemStorage()}
	next.CreatePlayer(ctx, &model.Player{PlayerID: 1, Rating: 1500})
	next.CreatePlayer(ctx, &model.Player{PlayerID: 2, Rating: 1600})
	s := NewStorage(4, next)

	s.FetchPlayer(ctx, 1)
	next.fetches = 0
	got, err := s.FetchPlayers(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("FetchPlayers: %v", err)
	}
	if len(got) != 2 || got[2].Rating != 1600 {
		t.Errorf("FetchPlayers = %v", got)
	}
	if next.fetches != 2 {
		t.Errorf("next layer saw %d ids, want 2", next.fetches)
	}
}

func TestSaveMatchEvicts(t *testing.T) {
	ctx := context.Background()
	next := state.NewMemStorage()
	next.CreatePlayer(ctx, &model.Player{PlayerID: 1, Rating: 1500})
	s := NewStorage(4, next)

	snap, _ := s.FetchPlayers(ctx, []int64{1})
	_, err := s.SaveMatch(ctx, &model.Match{
		MatchKey: uuid.New(),
		PlayedAt: time.Now(),
		Results:  []*model.Result{{PlayerID: 1, Rank: 1, RatingBefore: 1500, RatingAfter: 1620}},
	}, snap)
	if err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	p, err := s.FetchPlayer(ctx, 1)
	if err != nil {
		t.Fatalf("FetchPlayer: %v", err)
	}
	if p.Rating != 1620 {
		t.Errorf("rating after save = %v, want 1620", p.Rating)
	}
}

func TestConsumeEvictsOlderCopies(t *testing.T) {
	ctx := context.Background()
	next := &countingStorage{MemStorage: state.NewMemStorage()}
	next.CreatePlayer(ctx, &model.Player{PlayerID: 1, Rating: 1500})
	s := NewStorage(4, next)

	s.FetchPlayer(ctx, 1) // cached at version 0
	s.Consume(ctx, &dbnotify.NotificationEvent{Table: "players", OnID: 1, Version: 0})
	s.FetchPlayer(ctx, 1)
	if next.fetches != 1 {
		t.Errorf("event for the cached version evicted it")
	}

	s.Consume(ctx, &dbnotify.NotificationEvent{Table: "players", OnID: 1, Version: 1})
	s.FetchPlayer(ctx, 1)
	if next.fetches != 2 {
		t.Errorf("event for a newer version did not evict")
	}
}

// interleavingStorage runs midFetch once, after it has read players but
// before the cache above it gets them back.
type interleavingStorage struct {
	*state.MemStorage
	midFetch func()
}

func (s *interleavingStorage) FetchPlayers(ctx context.Context, ids []int64) (map[int64]*model.Player, error) {
	out, err := s.MemStorage.FetchPlayers(ctx, ids)
	if f := s.midFetch; f != nil {
		s.midFetch = nil
		f()
	}
	return out, err
}

func TestReadRacingSaveDoesNotCacheStaleCopy(t *testing.T) {
	ctx := context.Background()
	next := &interleavingStorage{MemStorage: state.NewMemStorage()}
	next.CreatePlayer(ctx, &model.Player{PlayerID: 1, Rating: 1500})
	s := NewStorage(4, next)

	save := func(before, after float64, snap map[int64]*model.Player) error {
		_, err := s.SaveMatch(ctx, &model.Match{
			MatchKey: uuid.New(),
			PlayedAt: time.Now(),
			Results:  []*model.Result{{PlayerID: 1, Rank: 1, RatingBefore: before, RatingAfter: after}},
		}, snap)
		return err
	}

	next.midFetch = func() {
		snap, _ := next.MemStorage.FetchPlayers(ctx, []int64{1})
		if err := save(1500, 1620, snap); err != nil {
			t.Errorf("concurrent SaveMatch: %v", err)
		}
	}
	stale, err := s.FetchPlayers(ctx, []int64{1})
	if err != nil {
		t.Fatalf("FetchPlayers: %v", err)
	}
	if stale[1].Rating != 1500 {
		t.Fatalf("read raced with the save but saw %v", stale[1].Rating)
	}

	snap, err := s.FetchPlayers(ctx, []int64{1})
	if err != nil {
		t.Fatalf("FetchPlayers: %v", err)
	}
	if snap[1].Rating != 1620 {
		t.Errorf("rating after racing save = %v, want 1620", snap[1].Rating)
	}
	if err := save(1620, 1700, snap); err != nil {
		t.Errorf("SaveMatch from a fresh snapshot: %v", err)
	}
}
