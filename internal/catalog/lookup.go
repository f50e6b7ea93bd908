package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyperengineering/voyager/internal/metrics"
	"github.com/hyperengineering/voyager/internal/types"
)

// Upstream is the catalog API as seen by Lookup.
type Upstream interface {
	SearchMovies(ctx context.Context, name string, year int) ([]types.CatalogResult, error)
	SearchTvShows(ctx context.Context, name string, year int) ([]types.CatalogResult, error)
	MovieDetails(ctx context.Context, id int) ([]byte, error)
	TvShowDetails(ctx context.Context, id int) ([]byte, error)
	TvExternalIDs(ctx context.Context, id int) (*types.ExternalIDs, error)
}

// Cache persists detail payloads keyed by kind and catalog id.
type Cache interface {
	GetCached(ctx context.Context, kind types.MediaKind, id string) (*types.CachedCatalogEntry, error)
	UpsertCached(ctx context.Context, entry *types.CachedCatalogEntry) error
}

// Lookup is the cache-first view of the catalog.
type Lookup struct {
	upstream Upstream
	cache    Cache
	now      func() time.Time
}

// NewLookup creates a Lookup.
func NewLookup(upstream Upstream, cache Cache) *Lookup {
	return &Lookup{upstream: upstream, cache: cache, now: time.Now}
}

// Search runs a catalog search restricted to kind. year 0 drops the year filter.
func (l *Lookup) Search(ctx context.Context, kind types.MediaKind, name string, year int) ([]types.CatalogResult, error) {
	if kind == types.KindTV {
		return l.upstream.SearchTvShows(ctx, name, year)
	}
	return l.upstream.SearchMovies(ctx, name, year)
}

// Details returns the raw detail payload for (kind, id), or nil if the catalog
// has no such entry. A cache hit makes no upstream call; a miss fetches and
// stores the payload. Missing entries are not cached.
func (l *Lookup) Details(ctx context.Context, kind types.MediaKind, id int) ([]byte, error) {
	key := strconv.Itoa(id)

	entry, err := l.cache.GetCached(ctx, kind, key)
	if err != nil {
		// A broken cache degrades to a pass-through.
		slog.Warn("catalog cache read failed",
			"component", "catalog",
			"kind", kind,
			"id", key,
			"error", err,
		)
	}
	if entry != nil && len(entry.Payload) > 0 {
		metrics.CatalogCacheLookups.WithLabelValues(string(kind), "hit").Inc()
		return entry.Payload, nil
	}

	var payload []byte
	if kind == types.KindTV {
		payload, err = l.upstream.TvShowDetails(ctx, id)
	} else {
		payload, err = l.upstream.MovieDetails(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s %d: %w", kind, id, err)
	}
	if payload == nil {
		metrics.CatalogCacheLookups.WithLabelValues(string(kind), "absent").Inc()
		return nil, nil
	}
	metrics.CatalogCacheLookups.WithLabelValues(string(kind), "miss").Inc()

	if err := l.cache.UpsertCached(ctx, &types.CachedCatalogEntry{
		Kind:      kind,
		ID:        key,
		Payload:   payload,
		CreatedAt: l.now().UTC(),
	}); err != nil {
		slog.Warn("catalog cache write failed",
			"component", "catalog",
			"kind", kind,
			"id", key,
			"error", err,
		)
	}
	return payload, nil
}

// Movie returns decoded movie details, or nil if the catalog has no such movie.
func (l *Lookup) Movie(ctx context.Context, id int) (*types.MovieDetails, error) {
	payload, err := l.Details(ctx, types.KindMovie, id)
	if err != nil || payload == nil {
		return nil, err
	}
	var m types.MovieDetails
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode movie %d: %w", id, err)
	}
	return &m, nil
}

// TvShow returns decoded TV show details, or nil if the catalog has no such show.
func (l *Lookup) TvShow(ctx context.Context, id int) (*types.TvShowDetails, error) {
	payload, err := l.Details(ctx, types.KindTV, id)
	if err != nil || payload == nil {
		return nil, err
	}
	var s types.TvShowDetails
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode tv show %d: %w", id, err)
	}
	return &s, nil
}

// TvExternalIDs is not cached; it is only needed for the rating lookup.
func (l *Lookup) TvExternalIDs(ctx context.Context, id int) (*types.ExternalIDs, error) {
	return l.upstream.TvExternalIDs(ctx, id)
}
