// ABOUTME: SQLite implementation of the checkpoint Log using modernc.org/sqlite
// ABOUTME: Append-only turn storage with per-key monotonic sequence numbers

package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLog implements the Log interface using SQLite. It is intended to
// live in its own database file, separate from the identity store.
type SQLiteLog struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Log = (*SQLiteLog)(nil)

// NewSQLiteLog creates a new SQLite-backed turn log at the given path.
// The schema is automatically created if it doesn't exist.
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	logger := slog.Default().With("component", "checkpoint")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLog{
		db:     db,
		logger: logger,
	}

	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("checkpoint log initialized", "path", path)
	return l, nil
}

// createSchema creates the turn table if it doesn't exist
func (l *SQLiteLog) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			thread_key TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls_json TEXT,
			seq INTEGER NOT NULL,
			created_at TEXT NOT NULL,

			UNIQUE(thread_key, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_turns_key_seq ON turns(thread_key, seq);
	`

	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (l *SQLiteLog) Close() error {
	l.logger.Info("closing checkpoint log")
	return l.db.Close()
}

// Append stores a turn at the end of the key's sequence. The sequence
// number is assigned inside the INSERT so concurrent appends to the same
// key cannot collide (the UNIQUE(thread_key, seq) constraint backstops it).
func (l *SQLiteLog) Append(ctx context.Context, turn *Turn) error {
	if turn.ThreadKey == "" {
		return fmt.Errorf("thread key is required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO turns (id, thread_key, kind, content, tool_calls_json, seq, created_at)
		VALUES (?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE thread_key = ?),
			?)
		RETURNING seq
	`

	err := l.db.QueryRowContext(ctx, query,
		turn.ID,
		turn.ThreadKey,
		string(turn.Kind),
		turn.Content,
		turn.ToolCallsJSON,
		turn.ThreadKey,
		turn.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&turn.Seq)
	if err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}

	l.logger.Debug("appended turn", "thread_key", turn.ThreadKey, "kind", turn.Kind, "seq", turn.Seq)
	return nil
}

// Turns returns the full sequence for a key in stored order.
func (l *SQLiteLog) Turns(ctx context.Context, threadKey string) ([]*Turn, error) {
	query := `
		SELECT id, thread_key, kind, content, tool_calls_json, seq, created_at
		FROM turns
		WHERE thread_key = ?
		ORDER BY seq ASC
	`

	rows, err := l.db.QueryContext(ctx, query, threadKey)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	turns := []*Turn{}
	for rows.Next() {
		var turn Turn
		var kindStr string
		var toolCalls sql.NullString
		var createdAtStr string

		err := rows.Scan(
			&turn.ID,
			&turn.ThreadKey,
			&kindStr,
			&turn.Content,
			&toolCalls,
			&turn.Seq,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}

		turn.Kind = ParseKind(kindStr)
		turn.ToolCallsJSON = toolCalls.String

		turn.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}
