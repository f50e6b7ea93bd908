package catalog

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hyperengineering/voyager/internal/types"
)

type fakeUpstream struct {
	mu            sync.Mutex
	movies        map[int][]byte
	shows         map[int][]byte
	err           error
	detailCalls   int
	searchCalls   []string
	searchResults []types.CatalogResult
}

func (f *fakeUpstream) SearchMovies(ctx context.Context, name string, year int) ([]types.CatalogResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, "movie:"+name)
	return f.searchResults, f.err
}

func (f *fakeUpstream) SearchTvShows(ctx context.Context, name string, year int) ([]types.CatalogResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, "tv:"+name)
	return f.searchResults, f.err
}

func (f *fakeUpstream) MovieDetails(ctx context.Context, id int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.movies[id], nil
}

func (f *fakeUpstream) TvShowDetails(ctx context.Context, id int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.shows[id], nil
}

func (f *fakeUpstream) TvExternalIDs(ctx context.Context, id int) (*types.ExternalIDs, error) {
	return &types.ExternalIDs{ImdbID: "tt0000001"}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*types.CachedCatalogEntry
	readErr error
	upserts int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*types.CachedCatalogEntry)}
}

func (c *fakeCache) GetCached(ctx context.Context, kind types.MediaKind, id string) (*types.CachedCatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.entries[string(kind)+"/"+id], nil
}

func (c *fakeCache) UpsertCached(ctx context.Context, e *types.CachedCatalogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts++
	c.entries[string(e.Kind)+"/"+e.ID] = e
	return nil
}

const inceptionJSON = `{"id":27205,"imdb_id":"tt1375666","title":"Inception","release_date":"2010-07-15","genres":[{"id":28,"name":"Action"}],"production_countries":[{"iso_3166_1":"US","name":"United States of America"}]}`

func TestLookup_SecondCallIsCacheHit(t *testing.T) {
	up := &fakeUpstream{movies: map[int][]byte{27205: []byte(inceptionJSON)}}
	cache := newFakeCache()
	l := NewLookup(up, cache)
	ctx := context.Background()

	first, err := l.Details(ctx, types.KindMovie, 27205)
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.Details(ctx, types.KindMovie, 27205)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("payloads differ:\n%s\n%s", first, second)
	}
	if up.detailCalls != 1 {
		t.Errorf("upstream detail calls = %d, want 1", up.detailCalls)
	}
	if cache.upserts != 1 {
		t.Errorf("cache upserts = %d, want 1", cache.upserts)
	}
}

func TestLookup_AbsentIsNotCached(t *testing.T) {
	up := &fakeUpstream{}
	cache := newFakeCache()
	l := NewLookup(up, cache)

	for i := 0; i < 2; i++ {
		m, err := l.Movie(context.Background(), 404)
		if err != nil || m != nil {
			t.Fatalf("Movie = (%v, %v), want (nil, nil)", m, err)
		}
	}
	if up.detailCalls != 2 {
		t.Errorf("upstream calls = %d, want 2 (no negative caching)", up.detailCalls)
	}
	if cache.upserts != 0 {
		t.Errorf("cache upserts = %d, want 0", cache.upserts)
	}
}

func TestLookup_UpstreamErrorPropagates(t *testing.T) {
	boom := errors.New("tmdb down")
	l := NewLookup(&fakeUpstream{err: boom}, newFakeCache())

	if _, err := l.TvShow(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped upstream error", err)
	}
}

func TestLookup_CacheReadFailureFallsThrough(t *testing.T) {
	up := &fakeUpstream{movies: map[int][]byte{27205: []byte(inceptionJSON)}}
	cache := newFakeCache()
	cache.readErr = errors.New("disk I/O error")
	l := NewLookup(up, cache)

	m, err := l.Movie(context.Background(), 27205)
	if err != nil {
		t.Fatalf("Movie: %v", err)
	}
	if m == nil || m.Title != "Inception" {
		t.Errorf("movie = %+v", m)
	}
}

func TestLookup_MovieDecodes(t *testing.T) {
	l := NewLookup(&fakeUpstream{movies: map[int][]byte{27205: []byte(inceptionJSON)}}, newFakeCache())

	m, err := l.Movie(context.Background(), 27205)
	if err != nil {
		t.Fatal(err)
	}
	if m.ImdbID != "tt1375666" || m.ReleaseDate != "2010-07-15" {
		t.Errorf("movie = %+v", m)
	}
	if len(m.Genres) != 1 || m.Genres[0].Name != "Action" {
		t.Errorf("genres = %+v", m.Genres)
	}
	if len(m.ProductionCountries) != 1 || m.ProductionCountries[0].Name != "United States of America" {
		t.Errorf("countries = %+v", m.ProductionCountries)
	}
}

func TestLookup_CacheKeyedByKind(t *testing.T) {
	up := &fakeUpstream{
		movies: map[int][]byte{1: []byte(`{"id":1,"title":"Movie One"}`)},
		shows:  map[int][]byte{1: []byte(`{"id":1,"name":"Show One"}`)},
	}
	l := NewLookup(up, newFakeCache())
	ctx := context.Background()

	m, err := l.Movie(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := l.TvShow(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Title != "Movie One" || s.Name != "Show One" {
		t.Errorf("movie %q, show %q: same id must not collide across kinds", m.Title, s.Name)
	}
}

func TestLookup_SearchDispatchesByKind(t *testing.T) {
	up := &fakeUpstream{}
	l := NewLookup(up, newFakeCache())

	_, _ = l.Search(context.Background(), types.KindMovie, "Heat", 1995)
	_, _ = l.Search(context.Background(), types.KindTV, "Dark", 0)

	if len(up.searchCalls) != 2 || up.searchCalls[0] != "movie:Heat" || up.searchCalls[1] != "tv:Dark" {
		t.Errorf("search calls = %v", up.searchCalls)
	}
}
