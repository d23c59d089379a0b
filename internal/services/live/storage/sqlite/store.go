// Package sqlite provides the SQLite-backed livegate store: the audit log,
// idempotent room records and token revocations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/siu-labs/livegate/internal/platform/storage/sqlitemigrate"
	"github.com/siu-labs/livegate/internal/services/live/room"
	"github.com/siu-labs/livegate/internal/services/live/storage"
	"github.com/siu-labs/livegate/internal/services/live/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists livegate state in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the clock used for revocation expiry and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens a SQLite store at path, creating its directory, and applies
// embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := &Store{sqlDB: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// AppendAuthorizationEvent inserts one audit record.
func (s *Store) AppendAuthorizationEvent(ctx context.Context, event storage.AuthorizationEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(string(event.Outcome)) == "" {
		return fmt.Errorf("outcome is required")
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO authorization_events (
	id, owner_address, lock_address, chain, outcome, manager, detail, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		strings.TrimSpace(event.ID),
		strings.TrimSpace(event.OwnerAddress),
		strings.TrimSpace(event.LockAddress),
		strings.TrimSpace(event.Chain),
		string(event.Outcome),
		event.Manager,
		event.Detail,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("append authorization event: %w", err)
	}
	return nil
}

// GetRoom returns the room recorded for key.
func (s *Store) GetRoom(ctx context.Context, key string) (room.Room, bool, error) {
	if err := s.ready(ctx); err != nil {
		return room.Room{}, false, err
	}
	var r room.Room
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT room_id, room_url FROM rooms WHERE idempotency_key = ?`,
		strings.TrimSpace(key),
	).Scan(&r.ID, &r.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return room.Room{}, false, nil
	}
	if err != nil {
		return room.Room{}, false, fmt.Errorf("get room: %w", err)
	}
	return r, true, nil
}

// PutRoom records r under key. An existing record for key is kept.
func (s *Store) PutRoom(ctx context.Context, key string, r room.Room) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("room id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO rooms (idempotency_key, room_id, room_url, created_at) VALUES (?, ?, ?, ?)`,
		key, r.ID, r.URL, toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put room: %w", err)
	}
	return nil
}

// Revoke records tokenID as revoked until expiresAt.
func (s *Store) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return fmt.Errorf("token id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at, revoked_at) VALUES (?, ?, ?)
		 ON CONFLICT(token_id) DO NOTHING`,
		tokenID, toMillis(expiresAt), toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked and has not yet expired.
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT expires_at FROM revoked_tokens WHERE token_id = ?`,
		strings.TrimSpace(tokenID),
	).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return fromMillis(expiresAt).After(s.now()), nil
}

// PruneRevocations deletes revocations whose tokens expired at or before now.
func (s *Store) PruneRevocations(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("prune revocations: %w", err)
	}
	return res.RowsAffected()
}

var (
	_ storage.AuditLog        = (*Store)(nil)
	_ storage.RevocationStore = (*Store)(nil)
	_ room.Store              = (*Store)(nil)
)
