package state

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ts4z/placerank/dbutil"
	"github.com/ts4z/placerank/he"
	"github.com/ts4z/placerank/model"
)

//go:embed schema.sql
var schema string

type DBStorage struct {
	db *sql.DB
}

var _ Storage = &DBStorage{}

// NewDBStorage wraps an open database, usually from dbutil.Connect.
func NewDBStorage(ctx context.Context, db *sql.DB) (*DBStorage, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("can't reach database: %w", err)
	}
	return &DBStorage{db: db}, nil
}

// DB is the underlying pool, for listening to change notifications.
func (s *DBStorage) DB() *sql.DB {
	return s.db
}

func (s *DBStorage) Close() {
	s.db.Close()
}

// EnsureSchema creates any missing tables.
func (s *DBStorage) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const playerColumns = `player_id, optimistic_lock, nick, rating, matches_played, last_played_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*model.Player, error) {
	p := &model.Player{}
	var last sql.NullTime
	if err := row.Scan(&p.PlayerID, &p.OptimisticLock, &p.Nick, &p.Rating, &p.MatchesPlayed, &last); err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time.UTC()
		p.LastPlayedAt = &t
	}
	return p, nil
}

func (s *DBStorage) CreatePlayer(ctx context.Context, p *model.Player) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO players (player_id, nick, rating) VALUES ($1, $2, $3) ON CONFLICT (player_id) DO NOTHING`,
		p.PlayerID, p.Nick, p.Rating)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return he.HTTPCodedErrorf(http.StatusConflict, "player %d already exists", p.PlayerID)
	}
	return nil
}

func (s *DBStorage) RenamePlayer(ctx context.Context, id int64, nick string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE players SET nick=$1, optimistic_lock=optimistic_lock+1 WHERE player_id=$2`, nick, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return he.HTTPCodedErrorf(http.StatusNotFound, "no such player id %d", id)
	}
	return nil
}

func (s *DBStorage) FetchPlayer(ctx context.Context, id int64) (*model.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE player_id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, he.HTTPCodedErrorf(http.StatusNotFound, "no such player id %d", id)
	}
	return p, err
}

func (s *DBStorage) queryPlayers(ctx context.Context, query string, args ...any) ([]*model.Player, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []*model.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *DBStorage) FetchPlayers(ctx context.Context, ids []int64) (map[int64]*model.Player, error) {
	players, err := s.queryPlayers(ctx,
		`SELECT `+playerColumns+` FROM players WHERE player_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*model.Player, len(players))
	for _, p := range players {
		out[p.PlayerID] = p
	}
	return out, nil
}

func (s *DBStorage) FetchLeaderboard(ctx context.Context, offset, limit int) ([]*model.Player, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryPlayers(ctx,
		`SELECT `+playerColumns+` FROM players ORDER BY rating DESC, player_id OFFSET $1 LIMIT $2`,
		offset, limit)
}

// SaveMatch writes players first, since results refer to them, then the
// match and its results, in one transaction.
func (s *DBStorage) SaveMatch(ctx context.Context, m *model.Match, players map[int64]*model.Player) (int64, error) {
	tx, err := dbutil.NewTx(ctx, s.db, nil)
	if err != nil {
		return 0, err
	}
	defer tx.MaybeRollback()

	for _, r := range m.Results {
		if snap, ok := players[r.PlayerID]; ok {
			err = tx.ExecOne(ctx,
				`UPDATE players SET rating=$1, matches_played=matches_played+1, last_played_at=$2, optimistic_lock=optimistic_lock+1
				 WHERE player_id=$3 AND optimistic_lock=$4`,
				r.RatingAfter, m.PlayedAt, r.PlayerID, snap.OptimisticLock)
		} else {
			err = tx.ExecOne(ctx,
				`INSERT INTO players (player_id, rating, matches_played, last_played_at, optimistic_lock)
				 VALUES ($1, $2, 1, $3, 1) ON CONFLICT (player_id) DO NOTHING`,
				r.PlayerID, r.RatingAfter, m.PlayedAt)
		}
		if errors.Is(err, dbutil.ErrNotOneRow) {
			log.Printf("optimistic lock failure saving player %d: %v", r.PlayerID, err)
			return 0, he.HTTPCodedErrorf(http.StatusConflict, "optimistic lock failure for player %d", r.PlayerID)
		} else if err != nil {
			return 0, fmt.Errorf("saving player %d: %w", r.PlayerID, err)
		}
	}

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO matches (match_key, played_at) VALUES ($1, $2) RETURNING match_id`,
		m.MatchKey, m.PlayedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("saving match: %w", err)
	}

	for _, r := range m.Results {
		if _, err := tx.Exec(ctx,
			`INSERT INTO match_results (match_id, player_id, match_rank, rating_before, rating_after, change_score, performance_rating)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, r.PlayerID, r.Rank, r.RatingBefore, r.RatingAfter, r.ChangeScore, r.PerformanceRating); err != nil {
			return 0, fmt.Errorf("saving result for player %d: %w", r.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *DBStorage) FetchMatch(ctx context.Context, id int64) (*model.Match, error) {
	m := &model.Match{MatchID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT match_key, played_at FROM matches WHERE match_id=$1`, id).Scan(&m.MatchKey, &m.PlayedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, he.HTTPCodedErrorf(http.StatusNotFound, "no such match id %d", id)
	} else if err != nil {
		return nil, err
	}
	m.PlayedAt = m.PlayedAt.UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, match_rank, rating_before, rating_after, change_score, performance_rating
		 FROM match_results WHERE match_id=$1 ORDER BY match_rank, player_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		r := &model.Result{}
		if err := rows.Scan(&r.PlayerID, &r.Rank, &r.RatingBefore, &r.RatingAfter, &r.ChangeScore, &r.PerformanceRating); err != nil {
			return nil, err
		}
		m.Results = append(m.Results, r)
	}
	return m, rows.Err()
}

func (s *DBStorage) FetchMatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.MatchSlug, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.match_id, m.match_key, m.played_at, count(r.player_id)
		 FROM matches m LEFT JOIN match_results r ON r.match_id = m.match_id
		 WHERE m.played_at >= $1
		 GROUP BY m.match_id
		 ORDER BY m.played_at DESC, m.match_id DESC
		 LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slugs := []*model.MatchSlug{}
	for rows.Next() {
		slug := &model.MatchSlug{}
		if err := rows.Scan(&slug.MatchID, &slug.MatchKey, &slug.PlayedAt, &slug.Participants); err != nil {
			log.Printf("Row scan failed: %v", err)
			continue
		}
		slug.PlayedAt = slug.PlayedAt.UTC()
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}
