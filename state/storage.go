package state

// package state manages persistence.

import (
	"context"
	"time"

	"github.com/ts4z/placerank/model"
)

type Closer interface {
	Close()
}

// PlayerStorage is storage's view of players.
type PlayerStorage interface {
	Closer

	// CreatePlayer stores a new player under p.PlayerID.
	CreatePlayer(ctx context.Context, p *model.Player) error
	// RenamePlayer changes a player's nick.
	RenamePlayer(ctx context.Context, id int64, nick string) error
	FetchPlayer(ctx context.Context, id int64) (*model.Player, error)
	// FetchPlayers returns the players that exist among ids.  Unknown ids are
	// simply absent from the map.
	FetchPlayers(ctx context.Context, ids []int64) (map[int64]*model.Player, error)
	// FetchLeaderboard lists players by descending rating.
	FetchLeaderboard(ctx context.Context, offset, limit int) ([]*model.Player, error)
}

// MatchStorage is storage's view of rated matches.
type MatchStorage interface {
	Closer

	// SaveMatch stores m and applies each result's RatingAfter to its player,
	// all or nothing.  players is the snapshot the ratings were computed from:
	// a player in it must not have changed since, and a player missing from it
	// must not exist yet.  Otherwise the save fails with a 409.
	SaveMatch(ctx context.Context, m *model.Match, players map[int64]*model.Player) (int64, error)
	FetchMatch(ctx context.Context, id int64) (*model.Match, error)
	// FetchMatchesSince lists matches played at or after since, newest first.
	FetchMatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.MatchSlug, error)
}

type Storage interface {
	PlayerStorage
	MatchStorage
}
