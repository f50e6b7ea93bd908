// Package catalog talks to the movie/TV metadata catalog (TMDB) and the rating
// service (OMDb), and layers a read-through detail cache over the catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hyperengineering/voyager/internal/metrics"
	"github.com/hyperengineering/voyager/internal/types"
)

// ErrUpstream marks catalog responses that are neither success nor not-found.
var ErrUpstream = errors.New("catalog upstream error")

// TMDBConfig configures the TMDB v3 client.
type TMDBConfig struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
}

// TMDBClient is a minimal TMDB v3 client guarded by a circuit breaker.
type TMDBClient struct {
	http *resty.Client
	cb   *gobreaker.CircuitBreaker[*resty.Response]
}

// NewTMDBClient creates a TMDB client.
// The breaker opens after 60% of at least 10 requests in a minute fail, and
// probes again after 30 seconds.
func NewTMDBClient(cfg TMDBConfig) *TMDBClient {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetQueryParam("api_key", cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if cfg.Language != "" {
		c.SetQueryParam("language", cfg.Language)
	}

	const cbName = "tmdb"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				"component", "catalog",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &TMDBClient{http: c, cb: cb}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// get issues a GET through the breaker. Transport errors and 5xx count as
// breaker failures; any 4xx is returned to the caller as a response.
func (t *TMDBClient) get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	return t.cb.Execute(func() (*resty.Response, error) {
		resp, err := t.http.R().
			SetContext(ctx).
			SetQueryParams(query).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("tmdb %s: %w", path, err)
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("tmdb %s: %w: status %d", path, ErrUpstream, resp.StatusCode())
		}
		return resp, nil
	})
}

type movieSearchResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Popularity  float64 `json:"popularity"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
}

type tvSearchResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
}

type searchPage[T any] struct {
	Page         int `json:"page"`
	Results      []T `json:"results"`
	TotalResults int `json:"total_results"`
}

// SearchMovies returns the first page of movie matches in catalog rank order.
// year 0 searches without a year filter.
func (t *TMDBClient) SearchMovies(ctx context.Context, name string, year int) ([]types.CatalogResult, error) {
	query := map[string]string{"query": name}
	if year > 0 {
		query["year"] = strconv.Itoa(year)
	}

	var page searchPage[movieSearchResult]
	if err := t.search(ctx, "/3/search/movie", query, &page); err != nil {
		return nil, err
	}

	out := make([]types.CatalogResult, 0, len(page.Results))
	for _, r := range page.Results {
		out = append(out, types.CatalogResult{
			ID:         r.ID,
			Title:      r.Title,
			Year:       yearOf(r.ReleaseDate),
			Popularity: r.Popularity,
			Overview:   r.Overview,
			PosterPath: r.PosterPath,
		})
	}
	return out, nil
}

// SearchTvShows returns the first page of TV matches in catalog rank order.
// year 0 searches without a first-air-year filter.
func (t *TMDBClient) SearchTvShows(ctx context.Context, name string, year int) ([]types.CatalogResult, error) {
	query := map[string]string{"query": name}
	if year > 0 {
		query["first_air_date_year"] = strconv.Itoa(year)
	}

	var page searchPage[tvSearchResult]
	if err := t.search(ctx, "/3/search/tv", query, &page); err != nil {
		return nil, err
	}

	out := make([]types.CatalogResult, 0, len(page.Results))
	for _, r := range page.Results {
		out = append(out, types.CatalogResult{
			ID:         r.ID,
			Title:      r.Name,
			Year:       yearOf(r.FirstAirDate),
			Popularity: r.Popularity,
			Overview:   r.Overview,
			PosterPath: r.PosterPath,
		})
	}
	return out, nil
}

func (t *TMDBClient) search(ctx context.Context, path string, query map[string]string, out any) error {
	resp, err := t.get(ctx, path, query)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("tmdb %s: %w: status %d", path, ErrUpstream, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("tmdb %s: decode: %w", path, err)
	}
	return nil
}

// MovieDetails returns the raw detail payload for a movie, or nil when the
// catalog has no such id.
func (t *TMDBClient) MovieDetails(ctx context.Context, id int) ([]byte, error) {
	return t.details(ctx, "/3/movie/"+strconv.Itoa(id))
}

// TvShowDetails returns the raw detail payload for a TV show, or nil when the
// catalog has no such id.
func (t *TMDBClient) TvShowDetails(ctx context.Context, id int) ([]byte, error) {
	return t.details(ctx, "/3/tv/"+strconv.Itoa(id))
}

func (t *TMDBClient) details(ctx context.Context, path string) ([]byte, error) {
	resp, err := t.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return resp.Body(), nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("tmdb %s: %w: status %d", path, ErrUpstream, resp.StatusCode())
	}
}

// TvExternalIDs returns the external identifiers of a TV show, or nil when the
// catalog has no such id.
func (t *TMDBClient) TvExternalIDs(ctx context.Context, id int) (*types.ExternalIDs, error) {
	body, err := t.details(ctx, "/3/tv/"+strconv.Itoa(id)+"/external_ids")
	if err != nil || body == nil {
		return nil, err
	}
	var ids types.ExternalIDs
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("tmdb external ids %d: decode: %w", id, err)
	}
	return &ids, nil
}

// yearOf extracts the year from a "YYYY-MM-DD" catalog date, 0 if absent.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
