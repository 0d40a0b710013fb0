package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wireroom-server/internal/store"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// Schema creates the profiles table. It is safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	color      INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.ProfileStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema against ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetProfile retrieves a profile by identity id.
func (s *SQLiteStore) GetProfile(ctx context.Context, id wire.IdentityID) (*store.Profile, error) {
	query := `
		SELECT id, name, color, updated_at
		FROM profiles
		WHERE id = ?
	`
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

const upsertProfile = `
	INSERT INTO profiles (id, name, color, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		color = excluded.color,
		updated_at = excluded.updated_at
`

// PutProfile inserts or replaces one profile.
func (s *SQLiteStore) PutProfile(ctx context.Context, p store.Profile) error {
	if _, err := s.db.ExecContext(ctx, upsertProfile, p.ID.String(), p.Name, int64(p.Color), stamp(p.UpdatedAt)); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// PutProfiles writes a batch inside one transaction.
func (s *SQLiteStore) PutProfiles(ctx context.Context, profiles []store.Profile) error {
	if len(profiles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after Commit
	}()

	stmt, err := tx.PrepareContext(ctx, upsertProfile)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range profiles {
		if _, err := stmt.ExecContext(ctx, p.ID.String(), p.Name, int64(p.Color), stamp(p.UpdatedAt)); err != nil {
			return fmt.Errorf("upsert profile %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListProfiles returns every stored profile ordered by id.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]store.Profile, error) {
	query := `
		SELECT id, name, color, updated_at
		FROM profiles
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []store.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}

	return profiles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*store.Profile, error) {
	var (
		rawID string
		color int64
		p     store.Profile
	)
	if err := row.Scan(&rawID, &p.Name, &color, &p.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := wire.ParseIdentityID(rawID)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.Color = wire.Color(color)
	return &p, nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

var _ store.ProfileStore = (*SQLiteStore)(nil)
