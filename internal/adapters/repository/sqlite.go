package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/types"
	"github.com/okian/icexg/pkg/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists tables in a single SQLite database so the dashboard
// survives restarts. Rows are stored as JSON with the columns needed for
// summaries pulled out.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// OpenSQLiteStore opens or creates the database at path. ":memory:" gives
// a private in-memory database.
func OpenSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := path
	if path != ":memory:" {
		clean := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		dsn = clean + "?_pragma=journal_mode(wal)"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += fmt.Sprintf("%s_pragma=busy_timeout(%d)", sep, cfg.busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS scored_rows (
			game_id   TEXT    NOT NULL,
			event_id  TEXT    NOT NULL,
			seq       INTEGER NOT NULL,
			is_home   INTEGER NOT NULL,
			is_goal   INTEGER NOT NULL,
			goal_prob REAL,
			payload   TEXT    NOT NULL,
			PRIMARY KEY (game_id, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scored_rows_seq ON scored_rows(game_id, seq)`,
		`CREATE TABLE IF NOT EXISTS table_models (
			game_id TEXT NOT NULL PRIMARY KEY,
			model   TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Table(gameID string) Table {
	return &sqliteTable{store: s, gameID: gameID}
}

func (s *SQLiteStore) Has(ctx context.Context, gameID string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	var ok bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM scored_rows WHERE game_id = ?)`, gameID,
	).Scan(&ok); err != nil {
		return false, fmt.Errorf("lookup table %s: %w", gameID, err)
	}
	return ok, nil
}

func (s *SQLiteStore) Drop(ctx context.Context, gameID string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drop table %s: %w", gameID, err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range []string{
		`DELETE FROM scored_rows WHERE game_id = ?`,
		`DELETE FROM table_models WHERE game_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, gameID); err != nil {
			return fmt.Errorf("drop table %s: %w", gameID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop table %s: %w", gameID, err)
	}
	metrics.UpdateTableRows(gameID, 0)
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

type sqliteTable struct {
	store  *SQLiteStore
	gameID string
}

func (t *sqliteTable) db() (*sql.DB, error) {
	if t.store.closed.Load() {
		return nil, ErrClosed
	}
	return t.store.db, nil
}

func (t *sqliteTable) Merge(ctx context.Context, rows []model.ScoredRow) (int, error) {
	for _, r := range rows {
		if r.EventID == "" {
			return 0, ErrEmptyEventID
		}
	}
	db, err := t.db()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM scored_rows WHERE game_id = ?`, t.gameID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO scored_rows
		(game_id, event_id, seq, is_home, is_goal, goal_prob, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare merge: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, r := range rows {
		payload, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encode row %s: %w", r.EventID, err)
		}
		res, err := stmt.ExecContext(ctx, t.gameID, r.EventID, seq+1, boolInt(r.IsHome), r.IsGoal, r.GoalProb, string(payload))
		if err != nil {
			return 0, fmt.Errorf("insert row %s: %w", r.EventID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			seq++
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit merge: %w", err)
	}

	if n, err := t.Len(ctx); err == nil {
		metrics.UpdateTableRows(t.gameID, n)
	}
	return added, nil
}

func (t *sqliteTable) Rows(ctx context.Context) ([]model.ScoredRow, error) {
	db, err := t.db()
	if err != nil {
		return nil, err
	}
	rs, err := db.QueryContext(ctx, `SELECT payload FROM scored_rows WHERE game_id = ? ORDER BY seq`, t.gameID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rs.Close()

	var out []model.ScoredRow
	for rs.Next() {
		var payload string
		if err := rs.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var r model.ScoredRow
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

func (t *sqliteTable) Summary(ctx context.Context) (types.Summary, error) {
	db, err := t.db()
	if err != nil {
		return types.Summary{}, err
	}
	s := types.Summary{GameID: t.gameID}
	err = db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(goal_prob IS NULL), 0),
			COALESCE(SUM(CASE WHEN is_home = 1 THEN goal_prob END), 0),
			COALESCE(SUM(CASE WHEN is_home = 0 THEN goal_prob END), 0),
			COALESCE(SUM(CASE WHEN is_home = 1 THEN is_goal END), 0),
			COALESCE(SUM(CASE WHEN is_home = 0 THEN is_goal END), 0)
		FROM scored_rows WHERE game_id = ?`, t.gameID,
	).Scan(&s.Rows, &s.Unscored, &s.HomeXG, &s.AwayXG, &s.HomeGoals, &s.AwayGoals)
	if err != nil {
		return types.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	s.HomeDiff = float64(s.HomeGoals) - s.HomeXG
	s.AwayDiff = float64(s.AwayGoals) - s.AwayXG
	return s, nil
}

func (t *sqliteTable) Len(ctx context.Context) (int, error) {
	db, err := t.db()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scored_rows WHERE game_id = ?`, t.gameID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func (t *sqliteTable) Model(ctx context.Context) (string, error) {
	db, err := t.db()
	if err != nil {
		return "", err
	}
	var tag string
	err = db.QueryRowContext(ctx, `SELECT model FROM table_models WHERE game_id = ?`, t.gameID).Scan(&tag)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("read model: %w", err)
	}
	return tag, nil
}

func (t *sqliteTable) SetModel(ctx context.Context, tag string) error {
	db, err := t.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO table_models (game_id, model) VALUES (?, ?)
		ON CONFLICT(game_id) DO UPDATE SET model = excluded.model`, t.gameID, tag); err != nil {
		return fmt.Errorf("stamp model: %w", err)
	}
	return nil
}

func (t *sqliteTable) Reset(ctx context.Context) error {
	return t.store.Drop(ctx, t.gameID)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
