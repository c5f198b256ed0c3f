package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/turnstile/pkg/domain"
	_ "modernc.org/sqlite" // SQLite driver
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS turns (
		thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('human','assistant','system')),
		content TEXT NOT NULL,
		payload TEXT,
		PRIMARY KEY (thread_id, seq)
	)`,
}

// Store implements ports.CheckpointStore on SQLite.
// Every turn is one row; Save replaces a thread's rows inside a transaction.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection also keeps
	// ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store, err := New(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing database handle and applies the schema.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Save replaces the stored thread atomically.
func (s *Store) Save(ctx context.Context, threadID string, thread domain.Thread) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO threads (id, updated_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		threadID, s.now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM turns WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turns (thread_id, seq, role, content, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, turn := range thread.Turns {
		var payload sql.NullString
		if turn.Payload != nil {
			data, mErr := json.Marshal(turn.Payload)
			if mErr != nil {
				err = fmt.Errorf("failed to marshal payload: %w", mErr)
				return err
			}
			payload = sql.NullString{String: string(data), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, threadID, i, string(turn.Role), turn.Content, payload); err != nil {
			return fmt.Errorf("failed to insert turn %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thread: %w", err)
	}
	return nil
}

// Load reads the thread's turns in order.
func (s *Store) Load(ctx context.Context, threadID string) (domain.Thread, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM threads WHERE id = ?`, threadID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Thread{}, domain.ErrThreadNotFound
	}
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to query thread: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, payload FROM turns WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	thread := domain.NewThread(threadID)
	for rows.Next() {
		var (
			role    string
			turn    domain.Turn
			payload sql.NullString
		)
		if err := rows.Scan(&role, &turn.Content, &payload); err != nil {
			return domain.Thread{}, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = domain.Role(role)
		if payload.Valid {
			var p domain.Payload
			if err := json.Unmarshal([]byte(payload.String), &p); err != nil {
				return domain.Thread{}, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
			turn.Payload = &p
		}
		thread.Turns = append(thread.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return domain.Thread{}, fmt.Errorf("failed to read turns: %w", err)
	}
	return thread, nil
}

// Delete removes the thread and, by cascade, its turns.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

// List returns thread ids, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM threads ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
