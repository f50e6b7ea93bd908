package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hyperengineering/voyager/internal/types"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed document store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Open opens the database with pragmas applied but without migrating.
func Open(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}
	return db, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func validKind(kind types.MediaKind) error {
	if kind != types.KindMovie && kind != types.KindTV {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return nil
}

// GetProfile returns the profile for (userID, kind), or ErrNotFound.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string, kind types.MediaKind) (*types.TasteProfile, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	p, err := scanProfile(s.db.QueryRowContext(ctx, `
		SELECT user_id, kind, favourites, watch_history, updated_at
		FROM taste_profiles WHERE user_id = ? AND kind = ?
	`, userID, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// AddFavourites adds items to favourites and to watch history, creating the
// profile on first write. Items already present (by ID) are left untouched.
func (s *SQLiteStore) AddFavourites(ctx context.Context, userID string, kind types.MediaKind, items []types.MediaItem) (*types.TasteProfile, error) {
	return s.updateProfile(ctx, userID, kind, func(p *types.TasteProfile) {
		p.Favourites = types.UnionItems(p.Favourites, items)
		p.WatchHistory = types.UnionItems(p.WatchHistory, items)
	})
}

// AddToHistory adds items to watch history only.
func (s *SQLiteStore) AddToHistory(ctx context.Context, userID string, kind types.MediaKind, items []types.MediaItem) (*types.TasteProfile, error) {
	return s.updateProfile(ctx, userID, kind, func(p *types.TasteProfile) {
		p.WatchHistory = types.UnionItems(p.WatchHistory, items)
	})
}

func (s *SQLiteStore) updateProfile(ctx context.Context, userID string, kind types.MediaKind, mutate func(*types.TasteProfile)) (*types.TasteProfile, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanProfile(tx.QueryRowContext(ctx, `
		SELECT user_id, kind, favourites, watch_history, updated_at
		FROM taste_profiles WHERE user_id = ? AND kind = ?
	`, userID, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		p = &types.TasteProfile{UserID: userID, Kind: kind}
	} else if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	mutate(p)
	p.UpdatedAt = s.now().UTC().Truncate(time.Second)

	favourites, err := json.Marshal(nonNil(p.Favourites))
	if err != nil {
		return nil, fmt.Errorf("encode favourites: %w", err)
	}
	history, err := json.Marshal(nonNil(p.WatchHistory))
	if err != nil {
		return nil, fmt.Errorf("encode watch history: %w", err)
	}
	ts := p.UpdatedAt.Format(time.RFC3339)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO taste_profiles (user_id, kind, favourites, watch_history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, kind) DO UPDATE SET
			favourites = excluded.favourites,
			watch_history = excluded.watch_history,
			updated_at = excluded.updated_at
	`, userID, string(kind), string(favourites), string(history), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// CountProfiles returns the number of stored profiles across both kinds.
func (s *SQLiteStore) CountProfiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM taste_profiles").Scan(&count)
	return count, err
}

// GetCached returns the cached detail payload, or nil on a miss.
func (s *SQLiteStore) GetCached(ctx context.Context, kind types.MediaKind, id string) (*types.CachedCatalogEntry, error) {
	var entry types.CachedCatalogEntry
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, id, payload, created_at FROM catalog_cache WHERE kind = ? AND id = ?
	`, string(kind), id).Scan(&entry.Kind, &entry.ID, &entry.Payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached %s %s: %w", kind, id, err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		entry.CreatedAt = t
	}
	return &entry, nil
}

// UpsertCached stores a detail payload. Repeated upserts for the same key overwrite.
func (s *SQLiteStore) UpsertCached(ctx context.Context, entry *types.CachedCatalogEntry) error {
	if err := validKind(entry.Kind); err != nil {
		return err
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_cache (kind, id, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
	`, string(entry.Kind), entry.ID, entry.Payload, createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert cached %s %s: %w", entry.Kind, entry.ID, err)
	}
	return nil
}

// LogActivity appends an activity row, assigning its ID and timestamp.
func (s *SQLiteStore) LogActivity(ctx context.Context, a types.UserActivity) (*types.UserActivity, error) {
	a.ID = ulid.Make().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_activity (id, user_id, activity_type, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.ActivityType, a.Details, a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("log activity: %w", err)
	}
	return &a, nil
}

// ListActivity returns a user's most recent activity, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, userID string, limit int) ([]types.UserActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, activity_type, details, created_at
		FROM user_activity WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []types.UserActivity
	for rows.Next() {
		var a types.UserActivity
		var createdAt string
		if err := rows.Scan(&a.ID, &a.UserID, &a.ActivityType, &a.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneActivity deletes activity created before the given time.
func (s *SQLiteStore) PruneActivity(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_activity WHERE created_at < ?",
		before.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}
	return res.RowsAffected()
}

func scanProfile(scanner interface{ Scan(...any) error }) (*types.TasteProfile, error) {
	var p types.TasteProfile
	var kind, favourites, history, updatedAt string
	if err := scanner.Scan(&p.UserID, &kind, &favourites, &history, &updatedAt); err != nil {
		return nil, err
	}
	p.Kind = types.MediaKind(kind)
	if err := json.Unmarshal([]byte(favourites), &p.Favourites); err != nil {
		return nil, fmt.Errorf("parse favourites JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &p.WatchHistory); err != nil {
		return nil, fmt.Errorf("parse watch history JSON: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}

func nonNil(items []types.MediaItem) []types.MediaItem {
	if items == nil {
		return []types.MediaItem{}
	}
	return items
}
