package dbcache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ts4z/placerank/dbnotify"
	"github.com/ts4z/placerank/model"
	"github.com/ts4z/placerank/state"
	"github.com/ts4z/placerank/varz"
)

// Writes through this cache evict what they touch.  Writes made elsewhere
// arrive as database notifications (see Consume); without a listener, a
// second writer would leave stale ratings here.
//
// A read that misses only fills the cache if nothing was evicted while it
// was out fetching.  Otherwise a copy read just before a SaveMatch could land
// after that save's eviction and stay there.

var (
	playerCacheHits          = varz.NewInt("playerCacheHits")
	playerCacheMisses        = varz.NewInt("playerCacheMisses")
	playerCacheNotifications = varz.NewInt("playerCacheNotifications")
)

// Storage caches players in front of another state.Storage.  Matches are
// passed straight through, but saving one evicts every player it touched.
type Storage struct {
	cache *lru.Cache[int64, *model.Player]
	next  state.Storage

	// evictions counts every eviction.  Guarded by mu, as are fills, so a
	// fill can tell whether an eviction happened since its read began.
	mu        sync.Mutex
	evictions uint64
}

var _ state.Storage = &Storage{}
var _ dbnotify.Consumer = &Storage{}

func NewStorage(size int, nx state.Storage) *Storage {
	cache, err := lru.New[int64, *model.Player](size)
	if err != nil {
		panic(err)
	}
	return &Storage{
		cache: cache,
		next:  nx,
	}
}

func (s *Storage) Close() {
	s.cache.Purge()
	s.next.Close()
}

func (s *Storage) InvalidateCache(playerID int64) {
	s.evict(playerID)
}

func (s *Storage) evict(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictions++
	for _, id := range ids {
		s.cache.Remove(id)
	}
}

func (s *Storage) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// fill caches copies of players read since generation gen, unless something
// was evicted in the meantime.
func (s *Storage) fill(gen uint64, players ...*model.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evictions != gen {
		return
	}
	for _, p := range players {
		s.cache.Add(p.PlayerID, p.Clone())
	}
}

// TableName implements dbnotify.Consumer.
func (s *Storage) TableName() string {
	return "players"
}

// Consume implements dbnotify.Consumer.  A cached copy at least as new as the
// event is kept.
func (s *Storage) Consume(ctx context.Context, event *dbnotify.NotificationEvent) {
	playerCacheNotifications.Add(1)
	if p, ok := s.cache.Peek(event.OnID); ok && p.OptimisticLock >= event.Version {
		return
	}
	s.evict(event.OnID)
}

// CreatePlayer implements state.PlayerStorage.
func (s *Storage) CreatePlayer(ctx context.Context, p *model.Player) error {
	defer s.evict(p.PlayerID)
	return s.next.CreatePlayer(ctx, p)
}

// RenamePlayer implements state.PlayerStorage.
func (s *Storage) RenamePlayer(ctx context.Context, id int64, nick string) error {
	defer s.evict(id)
	return s.next.RenamePlayer(ctx, id, nick)
}

// FetchPlayer implements state.PlayerStorage.
func (s *Storage) FetchPlayer(ctx context.Context, id int64) (*model.Player, error) {
	if p, ok := s.cache.Get(id); ok {
		playerCacheHits.Add(1)
		return p.Clone(), nil
	}
	playerCacheMisses.Add(1)
	gen := s.generation()
	p, err := s.next.FetchPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(gen, p)
	return p, nil
}

// FetchPlayers implements state.PlayerStorage.  Only the misses go to the
// next layer.
func (s *Storage) FetchPlayers(ctx context.Context, ids []int64) (map[int64]*model.Player, error) {
	out := make(map[int64]*model.Player, len(ids))
	missing := []int64{}
	for _, id := range ids {
		if p, ok := s.cache.Get(id); ok {
			playerCacheHits.Add(1)
			out[id] = p.Clone()
		} else {
			playerCacheMisses.Add(1)
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	gen := s.generation()
	fetched, err := s.next.FetchPlayers(ctx, missing)
	if err != nil {
		return nil, err
	}
	fills := make([]*model.Player, 0, len(fetched))
	for id, p := range fetched {
		fills = append(fills, p)
		out[id] = p
	}
	s.fill(gen, fills...)
	return out, nil
}

// FetchLeaderboard implements state.PlayerStorage.
func (s *Storage) FetchLeaderboard(ctx context.Context, offset, limit int) ([]*model.Player, error) {
	return s.next.FetchLeaderboard(ctx, offset, limit)
}

// SaveMatch implements state.MatchStorage.  The cache is cleared for every
// player in the match whether or not the save worked; a failed save usually
// means our copy is stale.
func (s *Storage) SaveMatch(ctx context.Context, m *model.Match, players map[int64]*model.Player) (int64, error) {
	defer func() {
		ids := make([]int64, len(m.Results))
		for i, r := range m.Results {
			ids[i] = r.PlayerID
		}
		s.evict(ids...)
	}()
	return s.next.SaveMatch(ctx, m, players)
}

// FetchMatch implements state.MatchStorage.
func (s *Storage) FetchMatch(ctx context.Context, id int64) (*model.Match, error) {
	return s.next.FetchMatch(ctx, id)
}

// FetchMatchesSince implements state.MatchStorage.
func (s *Storage) FetchMatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.MatchSlug, error) {
	return s.next.FetchMatchesSince(ctx, since, limit)
}
