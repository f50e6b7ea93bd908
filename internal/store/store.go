package store

import (
	"context"
	"time"

	"github.com/hyperengineering/voyager/internal/types"
)

// Store defines the persistence contract for profiles, the catalog cache and
// the activity log.
type Store interface {
	GetProfile(ctx context.Context, userID string, kind types.MediaKind) (*types.TasteProfile, error)
	AddFavourites(ctx context.Context, userID string, kind types.MediaKind, items []types.MediaItem) (*types.TasteProfile, error)
	AddToHistory(ctx context.Context, userID string, kind types.MediaKind, items []types.MediaItem) (*types.TasteProfile, error)
	CountProfiles(ctx context.Context) (int64, error)

	GetCached(ctx context.Context, kind types.MediaKind, id string) (*types.CachedCatalogEntry, error)
	UpsertCached(ctx context.Context, entry *types.CachedCatalogEntry) error

	LogActivity(ctx context.Context, activity types.UserActivity) (*types.UserActivity, error)
	ListActivity(ctx context.Context, userID string, limit int) ([]types.UserActivity, error)
	PruneActivity(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
