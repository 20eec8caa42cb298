package state

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ts4z/placerank/he"
	"github.com/ts4z/placerank/model"
)

// MemStorage keeps everything in maps.  It is used in tests and when no
// database is configured; nothing survives a restart.
type MemStorage struct {
	lock        sync.Mutex
	players     map[int64]*model.Player
	matches     map[int64]*model.Match
	nextMatchID int64
}

var _ Storage = &MemStorage{}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		players:     map[int64]*model.Player{},
		matches:     map[int64]*model.Match{},
		nextMatchID: 1,
	}
}

func (s *MemStorage) Close() {
	// No resources to clean up
}

func (s *MemStorage) CreatePlayer(ctx context.Context, p *model.Player) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.players[p.PlayerID]; ok {
		return he.HTTPCodedErrorf(http.StatusConflict, "player %d already exists", p.PlayerID)
	}
	s.players[p.PlayerID] = p.Clone()
	return nil
}

func (s *MemStorage) RenamePlayer(ctx context.Context, id int64, nick string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, ok := s.players[id]
	if !ok {
		return he.HTTPCodedErrorf(http.StatusNotFound, "no such player id %d", id)
	}
	p.Nick = nick
	p.OptimisticLock++
	return nil
}

func (s *MemStorage) FetchPlayer(ctx context.Context, id int64) (*model.Player, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, he.HTTPCodedErrorf(http.StatusNotFound, "no such player id %d", id)
	}
	return p.Clone(), nil
}

func (s *MemStorage) FetchPlayers(ctx context.Context, ids []int64) (map[int64]*model.Player, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[int64]*model.Player, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (s *MemStorage) FetchLeaderboard(ctx context.Context, offset, limit int) ([]*model.Player, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	all := make([]*model.Player, 0, len(s.players))
	for _, p := range s.players {
		all = append(all, p.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		return all[i].PlayerID < all[j].PlayerID
	})
	return page(all, offset, limit), nil
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (s *MemStorage) SaveMatch(ctx context.Context, m *model.Match, players map[int64]*model.Player) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	// Check everything before touching anything.
	for _, r := range m.Results {
		current, exists := s.players[r.PlayerID]
		snap, known := players[r.PlayerID]
		switch {
		case known && !exists:
			return 0, he.HTTPCodedErrorf(http.StatusConflict, "player %d vanished", r.PlayerID)
		case !known && exists:
			return 0, he.HTTPCodedErrorf(http.StatusConflict, "player %d was created concurrently", r.PlayerID)
		case known && current.OptimisticLock != snap.OptimisticLock:
			return 0, he.HTTPCodedErrorf(http.StatusConflict, "optimistic lock failure for player %d", r.PlayerID)
		}
	}

	playedAt := m.PlayedAt
	for _, r := range m.Results {
		p, ok := s.players[r.PlayerID]
		if !ok {
			p = &model.Player{PlayerID: r.PlayerID}
			s.players[r.PlayerID] = p
		}
		p.Rating = r.RatingAfter
		p.MatchesPlayed++
		p.LastPlayedAt = &playedAt
		p.OptimisticLock++
	}

	id := s.nextMatchID
	s.nextMatchID++
	stored := m.Clone()
	stored.MatchID = id
	s.matches[id] = stored
	return id, nil
}

func (s *MemStorage) FetchMatch(ctx context.Context, id int64) (*model.Match, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, he.HTTPCodedErrorf(http.StatusNotFound, "no such match id %d", id)
	}
	return m.Clone(), nil
}

func (s *MemStorage) FetchMatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.MatchSlug, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	slugs := []*model.MatchSlug{}
	for _, m := range s.matches {
		if !m.PlayedAt.Before(since) {
			slugs = append(slugs, m.Slug())
		}
	}
	sort.Slice(slugs, func(i, j int) bool {
		if !slugs[i].PlayedAt.Equal(slugs[j].PlayedAt) {
			return slugs[i].PlayedAt.After(slugs[j].PlayedAt)
		}
		return slugs[i].MatchID > slugs[j].MatchID
	})
	return page(slugs, 0, limit), nil
}
