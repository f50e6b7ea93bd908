package store

import (
	"context"
	"time"

	"github.com/hyperengineering/voyager/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var _ Store = (*mockStore)(nil)

func (m *mockStore) GetProfile(ctx context.Context, userID string, kind types.MediaKind) (*types.TasteProfile, error) {
	return nil, ErrNotFound
}
func (m *mockStore) AddFavourites(ctx context.Context, userID string, kind types.MediaKind, items []types.MediaItem) (*types.TasteProfile, error) {
	return nil, nil
}
func (m *mockStore) AddToHistory(ctx context.Context, userID string, kind types.MediaKind, items []types.MediaItem) (*types.TasteProfile, error) {
	return nil, nil
}
func (m *mockStore) CountProfiles(ctx context.Context) (int64, error) {
	return 0, nil
}
func (m *mockStore) GetCached(ctx context.Context, kind types.MediaKind, id string) (*types.CachedCatalogEntry, error) {
	return nil, nil
}
func (m *mockStore) UpsertCached(ctx context.Context, entry *types.CachedCatalogEntry) error {
	return nil
}
func (m *mockStore) LogActivity(ctx context.Context, activity types.UserActivity) (*types.UserActivity, error) {
	return &activity, nil
}
func (m *mockStore) ListActivity(ctx context.Context, userID string, limit int) ([]types.UserActivity, error) {
	return nil, nil
}
func (m *mockStore) PruneActivity(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
func (m *mockStore) Close() error {
	return nil
}
