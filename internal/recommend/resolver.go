// Package recommend turns a stored taste profile into one catalog-backed
// recommendation, using an LLM provider for the suggestion and the catalog to
// resolve and enrich it.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/voyager/internal/metrics"
	"github.com/hyperengineering/voyager/internal/provider"
	"github.com/hyperengineering/voyager/internal/store"
	"github.com/hyperengineering/voyager/internal/types"
)

// ProfileSource loads taste profiles. A missing profile is store.ErrNotFound.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string, kind types.MediaKind) (*types.TasteProfile, error)
}

// Catalog is the cache-backed catalog used for resolution and enrichment.
type Catalog interface {
	Search(ctx context.Context, kind types.MediaKind, name string, year int) ([]types.CatalogResult, error)
	Movie(ctx context.Context, id int) (*types.MovieDetails, error)
	TvShow(ctx context.Context, id int) (*types.TvShowDetails, error)
	TvExternalIDs(ctx context.Context, id int) (*types.ExternalIDs, error)
}

// Rater looks up an external rating. It never fails; "" means no rating.
type Rater interface {
	TryGetRating(ctx context.Context, imdbID string) string
}

// Providers resolves a provider tag ("" for the current selection) to a client.
type Providers interface {
	Resolve(tag string) provider.Client
}

// Config holds the escalation and retry tunables.
type Config struct {
	StartTemperature           float64
	MaxTemperature             float64
	TemperatureStep            float64 // per temperature-loop iteration
	RetryTemperatureStep       float64 // added to the start temperature per pipeline retry
	MaxNoResultsRetries        int
	MaxHistoryCollisionRetries int
	HistoryCap                 int
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		StartTemperature:           0.9,
		MaxTemperature:             2.0,
		TemperatureStep:            0.2,
		RetryTemperatureStep:       0.1,
		MaxNoResultsRetries:        4,
		MaxHistoryCollisionRetries: 3,
		HistoryCap:                 130,
	}
}

// Request selects whose recommendation to build and with which provider.
type Request struct {
	UserID   string
	Kind     types.MediaKind
	Provider string // empty uses the current selection
}

// Resolver runs the recommendation pipeline. Safe for concurrent use.
type Resolver struct {
	profiles  ProfileSource
	catalog   Catalog
	rater     Rater
	providers Providers
	cfg       Config
}

// New creates a Resolver. A non-positive TemperatureStep is replaced by the default.
func New(profiles ProfileSource, catalog Catalog, rater Rater, providers Providers, cfg Config) *Resolver {
	if cfg.TemperatureStep <= 0 {
		cfg.TemperatureStep = DefaultConfig().TemperatureStep
	}
	return &Resolver{
		profiles:  profiles,
		catalog:   catalog,
		rater:     rater,
		providers: providers,
		cfg:       cfg,
	}
}

// outcome is the result of one pipeline attempt.
type outcome int

const (
	outcomeDone          outcome = iota // rec holds the answer, possibly nil
	outcomeNoResults                    // catalog had nothing for the candidate
	outcomeHistoryClash                 // candidate resolved to a watched id
)

// Recommend returns one recommendation for the user, or nil when none could be
// produced. Errors are reserved for malformed provider output, rate limiting,
// data-integrity problems in the profile, and upstream catalog failures.
func (r *Resolver) Recommend(ctx context.Context, req Request) (*types.Recommendation, error) {
	log := slog.With("component", "recommend", "user_id", req.UserID, "kind", req.Kind)

	start := r.cfg.StartTemperature
	for depth := 0; ; depth++ {
		rec, next, err := r.attempt(ctx, log, req, start, depth)
		if err != nil {
			metrics.RecommendationOutcomes.WithLabelValues(string(req.Kind), "error").Inc()
			return nil, err
		}

		retry := false
		switch next {
		case outcomeNoResults:
			retry = depth < r.cfg.MaxNoResultsRetries
		case outcomeHistoryClash:
			retry = depth < r.cfg.MaxHistoryCollisionRetries
		}

		if !retry {
			if next == outcomeNoResults {
				log.Info("no catalog match within retry budget", "depth", depth)
				metrics.RecommendationOutcomes.WithLabelValues(string(req.Kind), "not_found").Inc()
				rec = nil
			}
			metrics.RecommendationAttempts.WithLabelValues(string(req.Kind)).Observe(float64(depth + 1))
			return rec, nil
		}

		start = round2(start + r.cfg.RetryTemperatureStep)
		log.Debug("retrying pipeline", "depth", depth+1, "start_temperature", start)
	}
}

// attempt runs the pipeline once from profile load to enrichment.
// A history clash at the retry limit falls through to enrichment.
func (r *Resolver) attempt(ctx context.Context, log *slog.Logger, req Request, start float64, depth int) (*types.Recommendation, outcome, error) {
	profile, err := r.profiles.GetProfile(ctx, req.UserID, req.Kind)
	if errors.Is(err, store.ErrNotFound) || (err == nil && profile == nil) {
		metrics.RecommendationOutcomes.WithLabelValues(string(req.Kind), "no_profile").Inc()
		return nil, outcomeDone, nil
	}
	if err != nil {
		return nil, outcomeDone, fmt.Errorf("load profile: %w", err)
	}

	favourites, err := projectItems(profile.Favourites)
	if err != nil {
		return nil, outcomeDone, err
	}
	history, err := projectItems(profile.RecentHistory(r.cfg.HistoryCap))
	if err != nil {
		return nil, outcomeDone, err
	}

	client := r.providers.Resolve(req.Provider)
	cand, found, err := r.escalate(ctx, log, client, req.Kind, favourites, history, profile.WatchHistory, start)
	if err != nil {
		return nil, outcomeDone, err
	}
	if !found {
		log.Info("temperature range exhausted", "provider", client.Name(), "start_temperature", start)
		metrics.RecommendationOutcomes.WithLabelValues(string(req.Kind), "exhausted").Inc()
		return nil, outcomeDone, nil
	}

	results, err := r.catalog.Search(ctx, req.Kind, cand.Name, cand.Year)
	if err != nil {
		return nil, outcomeDone, fmt.Errorf("search %q (%d): %w", cand.Name, cand.Year, err)
	}
	yearDropped := false
	if len(results) == 0 {
		yearDropped = true
		results, err = r.catalog.Search(ctx, req.Kind, cand.Name, 0)
		if err != nil {
			return nil, outcomeDone, fmt.Errorf("search %q: %w", cand.Name, err)
		}
	}
	if len(results) == 0 {
		log.Info("candidate not in catalog", "name", cand.Name, "year", cand.Year, "depth", depth)
		return nil, outcomeNoResults, nil
	}

	picked := pickResult(results, cand.Name, yearDropped)
	id := strconv.Itoa(picked.ID)
	if profile.InHistory(id) {
		if depth < r.cfg.MaxHistoryCollisionRetries {
			log.Info("candidate already watched", "catalog_id", id, "depth", depth)
			return nil, outcomeHistoryClash, nil
		}
		log.Info("candidate already watched, retry budget spent", "catalog_id", id, "depth", depth)
	}

	rec, err := r.enrich(ctx, req.Kind, picked.ID)
	if err != nil {
		return nil, outcomeDone, err
	}
	if rec == nil {
		log.Warn("catalog details missing for resolved id", "catalog_id", id)
		metrics.RecommendationOutcomes.WithLabelValues(string(req.Kind), "not_found").Inc()
		return nil, outcomeDone, nil
	}

	log.Info("recommendation resolved",
		"provider", client.Name(),
		"catalog_id", rec.ID,
		"title", rec.Title,
		"depth", depth,
	)
	metrics.RecommendationOutcomes.WithLabelValues(string(req.Kind), "recommended").Inc()
	return rec, outcomeDone, nil
}

// escalate asks the provider at rising temperatures until it names something
// that is not already in the watch history.
func (r *Resolver) escalate(ctx context.Context, log *slog.Logger, client provider.Client, kind types.MediaKind,
	favourites, history []string, watched []types.MediaItem, start float64) (candidate, bool, error) {
	for i := 0; ; i++ {
		temperature := round2(start + float64(i)*r.cfg.TemperatureStep)
		if temperature > r.cfg.MaxTemperature+1e-9 {
			return candidate{}, false, nil
		}

		raw, err := provider.Recommend(ctx, client, kind, favourites, history, temperature)
		if err != nil {
			return candidate{}, false, fmt.Errorf("%s: %w", client.Name(), err)
		}
		if raw == "" {
			log.Debug("empty answer", "provider", client.Name(), "temperature", temperature)
			continue
		}

		cand, err := parseAnswer(raw)
		if err != nil {
			return candidate{}, false, err
		}
		if seenInHistory(cand, watched) {
			log.Debug("provider repeated a watched title",
				"provider", client.Name(),
				"name", cand.Name,
				"year", cand.Year,
				"temperature", temperature,
			)
			continue
		}
		return cand, true, nil
	}
}

// enrich fetches details (cache-first) and the best-effort rating.
func (r *Resolver) enrich(ctx context.Context, kind types.MediaKind, id int) (*types.Recommendation, error) {
	if kind == types.KindTV {
		return r.enrichTvShow(ctx, id)
	}
	return r.enrichMovie(ctx, id)
}

func (r *Resolver) enrichMovie(ctx context.Context, id int) (*types.Recommendation, error) {
	m, err := r.catalog.Movie(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("movie details %d: %w", id, err)
	}
	if m == nil {
		return nil, nil
	}

	rec := &types.Recommendation{
		ID:          strconv.Itoa(m.ID),
		Kind:        types.KindMovie,
		Title:       m.Title,
		Genres:      nonNilGenres(m.Genres),
		Poster:      m.PosterPath,
		Overview:    m.Overview,
		ReleaseDate: m.ReleaseDate,
		Tagline:     m.Tagline,
		ImdbRating:  r.rater.TryGetRating(ctx, m.ImdbID),
	}
	if len(m.ProductionCountries) > 0 {
		rec.OriginCountry = m.ProductionCountries[0].Name
	}
	return rec, nil
}

func (r *Resolver) enrichTvShow(ctx context.Context, id int) (*types.Recommendation, error) {
	var (
		show   *types.TvShowDetails
		rating string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		show, err = r.catalog.TvShow(gctx, id)
		if err != nil {
			return fmt.Errorf("tv details %d: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		ids, err := r.catalog.TvExternalIDs(gctx, id)
		if err != nil {
			slog.Warn("external ids lookup failed", "component", "recommend", "catalog_id", id, "error", err)
			return nil
		}
		if ids != nil {
			rating = r.rater.TryGetRating(gctx, ids.ImdbID)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if show == nil {
		return nil, nil
	}

	rec := &types.Recommendation{
		ID:              strconv.Itoa(show.ID),
		Kind:            types.KindTV,
		Title:           show.Name,
		OriginalName:    show.OriginalName,
		Genres:          nonNilGenres(show.Genres),
		Poster:          show.PosterPath,
		Overview:        show.Overview,
		FirstAirDate:    show.FirstAirDate,
		Tagline:         show.Tagline,
		NumberOfSeasons: show.NumberOfSeasons,
		ImdbRating:      rating,
	}
	if len(show.OriginCountry) > 0 {
		rec.OriginCountry = show.OriginCountry[0]
	}
	return rec, nil
}

func nonNilGenres(g []types.Genre) []types.Genre {
	if g == nil {
		return []types.Genre{}
	}
	return g
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
