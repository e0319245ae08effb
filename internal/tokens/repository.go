// ABOUTME: Durable bearer-token repository backed by SQLite
// ABOUTME: Stores a single named token slot that survives process restarts

package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoToken is returned by Load when no token is stored.
var ErrNoToken = errors.New("no token stored")

// tokenSlot is the single slot name used for the session bearer token.
const tokenSlot = "session"

// Repository persists one bearer token string. Presence of a token is a
// claim that a session exists, not proof — proof requires a successful
// revalidation round trip by the session engine.
type Repository interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SQLiteRepository implements Repository using modernc.org/sqlite.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	slot       TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// NewSQLiteRepository opens (or creates) the token database at the given
// path. Parent directories are created if needed.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	logger := slog.Default().With("component", "tokens")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating token database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening token database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token schema: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

// Save stores the token, replacing any previous value in the slot.
func (r *SQLiteRepository) Save(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (slot, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		tokenSlot, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	r.logger.Debug("token saved")
	return nil
}

// Load returns the stored token, or ErrNoToken when the slot is empty.
func (r *SQLiteRepository) Load(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM tokens WHERE slot = ?`, tokenSlot).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	return token, nil
}

// Clear removes the stored token. Clearing an empty slot is not an error.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE slot = ?`, tokenSlot)
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	r.logger.Debug("token cleared")
	return nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
