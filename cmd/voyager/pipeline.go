package main

import (
	"fmt"
	"log/slog"

	"github.com/hyperengineering/voyager/internal/catalog"
	"github.com/hyperengineering/voyager/internal/config"
	"github.com/hyperengineering/voyager/internal/provider"
	"github.com/hyperengineering/voyager/internal/ratelimit"
	"github.com/hyperengineering/voyager/internal/recommend"
	"github.com/hyperengineering/voyager/internal/store"
)

// pipeline is the recommendation object graph shared by serve and recommend.
type pipeline struct {
	selection   *provider.Selection
	providers   *provider.Resolver
	catalog     *catalog.Lookup
	recommender *recommend.Resolver
}

func limiterFor(name provider.Name, l config.LimitConfig) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		Name:        string(name),
		MaxRequests: l.MaxRequests,
		Window:      l.Window.Std(),
		MaxPerDay:   l.MaxPerDay,
	})
}

// newPipeline wires one limiter per provider, both LLM clients, the catalog
// lookup over st, and the resolver.
func newPipeline(cfg *config.Config, st store.Store) (*pipeline, error) {
	initial, err := provider.ParseName(cfg.Provider.Default)
	if err != nil {
		return nil, fmt.Errorf("provider.default: %w", err)
	}
	fallback, err := provider.ParseName(cfg.Provider.Fallback)
	if err != nil {
		return nil, fmt.Errorf("provider.fallback: %w", err)
	}

	gemini := provider.NewGeminiClient(provider.GeminiConfig{
		BaseURL: cfg.Gemini.BaseURL,
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout.Std(),
	}, limiterFor(provider.Gemini, cfg.Gemini.RateLimit))

	groq := provider.NewGroqClient(provider.GroqConfig{
		BaseURL:          cfg.Groq.BaseURL,
		APIKey:           cfg.Groq.APIKey,
		Model:            cfg.Groq.Model,
		Timeout:          cfg.Groq.Timeout.Std(),
		MaxAttempts:      cfg.Groq.MaxAttempts,
		RateLimitBackoff: cfg.Groq.RateLimitBackoff.Std(),
		ErrorBackoff:     cfg.Groq.ErrorBackoff.Std(),
		MaxTokens:        int64(cfg.Groq.MaxTokens),
	}, limiterFor(provider.Groq, cfg.Groq.RateLimit))

	selection := provider.NewSelection(initial)
	providers, err := provider.NewResolver(selection, fallback, gemini, groq)
	if err != nil {
		return nil, err
	}

	tmdb := catalog.NewTMDBClient(catalog.TMDBConfig{
		BaseURL:  cfg.Catalog.BaseURL,
		APIKey:   cfg.Catalog.APIKey,
		Language: cfg.Catalog.Language,
		Timeout:  cfg.Catalog.Timeout.Std(),
	})
	lookup := catalog.NewLookup(tmdb, st)

	rater := catalog.NewRatingClient(catalog.OMDbConfig{
		BaseURL: cfg.Rating.BaseURL,
		APIKey:  cfg.Rating.APIKey,
		Timeout: cfg.Rating.Timeout.Std(),
	})
	if cfg.Rating.APIKey == "" {
		slog.Warn("OMDB_API_KEY not set, recommendations will carry no rating")
	}

	r := cfg.Recommendation
	recommender := recommend.New(st, lookup, rater, providers, recommend.Config{
		StartTemperature:           r.StartTemperature,
		MaxTemperature:             r.MaxTemperature,
		TemperatureStep:            r.TemperatureStep,
		RetryTemperatureStep:       r.RetryTemperatureStep,
		MaxNoResultsRetries:        r.MaxNoResultsRetries,
		MaxHistoryCollisionRetries: r.MaxHistoryCollisionRetries,
		HistoryCap:                 r.HistoryCap,
	})

	return &pipeline{
		selection:   selection,
		providers:   providers,
		catalog:     lookup,
		recommender: recommender,
	}, nil
}
