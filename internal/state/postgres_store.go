package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const feedStateSchema = `CREATE TABLE IF NOT EXISTS feed_state (
	feed_url TEXT PRIMARY KEY,
	last_run TIMESTAMPTZ NULL
)`

// PostgresStore keeps the same flat feed_url -> last_run mapping as the JSON
// file, one row per feed.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

type dbFeedState struct {
	FeedURL string       `db:"feed_url"`
	LastRun sql.NullTime `db:"last_run"`
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	if _, err := db.ExecContext(ctx, feedStateSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create feed_state table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context) (*State, error) {
	var rows []dbFeedState
	if err := s.db.SelectContext(ctx, &rows, `SELECT feed_url, last_run FROM feed_state`); err != nil {
		return nil, fmt.Errorf("select feed state: %w", err)
	}

	st := New()
	for _, row := range rows {
		fs := st.Feed(row.FeedURL)
		if row.LastRun.Valid {
			t := row.LastRun.Time.UTC()
			fs.LastRun = &t
		}
	}
	return st, nil
}

func (s *PostgresStore) Save(ctx context.Context, st *State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `INSERT INTO feed_state (feed_url, last_run)
	                VALUES (:feed_url, :last_run)
	                ON CONFLICT (feed_url) DO UPDATE
	                SET last_run = EXCLUDED.last_run`

	for url, fs := range st.Feeds {
		row := dbFeedState{FeedURL: url}
		if fs != nil && fs.LastRun != nil {
			row.LastRun = sql.NullTime{Time: *fs.LastRun, Valid: true}
		}
		if _, err := tx.NamedExecContext(ctx, upsert, row); err != nil {
			return fmt.Errorf("upsert feed state %s: %w", url, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit feed state: %w", err)
	}
	return nil
}
