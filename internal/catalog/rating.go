package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// OMDbConfig configures the OMDb rating client.
type OMDbConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RatingClient fetches IMDb ratings from OMDb. Every failure collapses to "".
type RatingClient struct {
	http   *resty.Client
	apiKey string
}

// NewRatingClient creates an OMDb rating client.
func NewRatingClient(cfg OMDbConfig) *RatingClient {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	return &RatingClient{http: c, apiKey: cfg.APIKey}
}

type omdbResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	ImdbRating string `json:"imdbRating"`
}

// TryGetRating returns the IMDb rating for imdbID, or "" when there is none to show.
func (r *RatingClient) TryGetRating(ctx context.Context, imdbID string) string {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return ""
	}
	if r.apiKey == "" {
		slog.Debug("rating lookup skipped, no api key", "component", "catalog")
		return ""
	}

	resp, err := r.http.R().
		SetContext(ctx).
		SetQueryParam("i", imdbID).
		SetQueryParam("apikey", r.apiKey).
		Get("/")
	if err != nil {
		slog.Warn("rating lookup failed", "component", "catalog", "imdb_id", imdbID, "error", err)
		return ""
	}
	if resp.StatusCode() != http.StatusOK {
		slog.Warn("rating lookup failed", "component", "catalog", "imdb_id", imdbID, "status", resp.StatusCode())
		return ""
	}

	var or omdbResponse
	if err := json.Unmarshal(resp.Body(), &or); err != nil {
		slog.Warn("rating lookup returned malformed body", "component", "catalog", "imdb_id", imdbID, "error", err)
		return ""
	}
	if !strings.EqualFold(or.Response, "True") {
		slog.Debug("rating not found", "component", "catalog", "imdb_id", imdbID, "reason", or.Error)
		return ""
	}
	rating := strings.TrimSpace(or.ImdbRating)
	if rating == "" || strings.EqualFold(rating, "N/A") {
		return ""
	}
	return rating
}
