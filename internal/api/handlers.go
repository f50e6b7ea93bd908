// Package api exposes the recommendation pipeline, catalog search and taste
// profile writes over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/hyperengineering/voyager/internal/provider"
	"github.com/hyperengineering/voyager/internal/recommend"
	"github.com/hyperengineering/voyager/internal/store"
	"github.com/hyperengineering/voyager/internal/types"
	"github.com/hyperengineering/voyager/internal/validation"
)

// Recommender produces one recommendation, or nil when none is available.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*types.Recommendation, error)
}

// Searcher runs catalog searches.
type Searcher interface {
	Search(ctx context.Context, kind types.MediaKind, name string, year int) ([]types.CatalogResult, error)
}

// ProviderSelection is the runtime-switchable provider cell.
type ProviderSelection interface {
	Current() provider.Name
	Set(n provider.Name) provider.Name
}

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
	maxBodyBytes         = 1 << 20
)

// Handler implements the API handlers
type Handler struct {
	store       store.Store
	recommender Recommender
	catalog     Searcher
	selection   ProviderSelection
	apiKey      string
	version     string
}

// NewHandler creates a new Handler.
func NewHandler(s store.Store, rec Recommender, cat Searcher, sel ProviderSelection, apiKey, version string) *Handler {
	return &Handler{
		store:       s,
		recommender: rec,
		catalog:     cat,
		selection:   sel,
		apiKey:      apiKey,
		version:     version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

// logActivity records user activity. Failures are logged and never surface.
func (h *Handler) logActivity(ctx context.Context, userID, activityType, details string) {
	if userID == "" {
		return
	}
	_, err := h.store.LogActivity(ctx, types.UserActivity{
		UserID:       userID,
		ActivityType: activityType,
		Details:      details,
	})
	if err != nil {
		slog.Warn("activity log failed",
			"component", "api",
			"user_id", userID,
			"activity_type", activityType,
			"error", err,
		)
	}
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountProfiles(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		Provider:     string(h.selection.Current()),
		ProfileCount: count,
	})
}

// RecommendMovie handles GET /recommendation/movie
func (h *Handler) RecommendMovie(w http.ResponseWriter, r *http.Request) {
	h.recommend(w, r, types.KindMovie, types.ActivityMovieRecommendation)
}

// RecommendTvShow handles GET /recommendation/tvshow
func (h *Handler) RecommendTvShow(w http.ResponseWriter, r *http.Request) {
	h.recommend(w, r, types.KindTV, types.ActivityTvRecommendation)
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request, kind types.MediaKind, activity string) {
	uid := UserIDFromContext(r.Context())

	rec, err := h.recommender.Recommend(r.Context(), recommend.Request{
		UserID:   uid,
		Kind:     kind,
		Provider: r.URL.Query().Get("provider"),
	})
	if err != nil {
		slog.Error("recommendation failed",
			"component", "api",
			"user_id", uid,
			"kind", kind,
			"error", err,
		)
		MapError(w, r, err)
		return
	}
	if rec == nil {
		WriteProblem(w, r, http.StatusNotFound, "No recommendation available")
		return
	}

	h.logActivity(r.Context(), uid, activity, rec.Title)
	writeJSON(w, http.StatusOK, rec)
}

// SearchMovies handles GET /api/search/movies?keyword=
func (h *Handler) SearchMovies(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, types.KindMovie, types.ActivityMovieSearch)
}

// SearchTvShows handles GET /api/search/tvShows?keyword=
func (h *Handler) SearchTvShows(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, types.KindTV, types.ActivityTvSearch)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, kind types.MediaKind, activity string) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if errs := validation.ValidateKeyword(keyword); len(errs) > 0 {
		WriteProblemWithErrors(w, r, http.StatusBadRequest, "Invalid search keyword", errs)
		return
	}

	results, err := h.catalog.Search(r.Context(), kind, keyword, 0)
	if err != nil {
		slog.Error("catalog search failed", "component", "api", "kind", kind, "error", err)
		MapError(w, r, err)
		return
	}

	h.logActivity(r.Context(), UserIDFromContext(r.Context()), activity, keyword)

	if len(results) == 0 {
		WriteProblem(w, r, http.StatusNotFound, fmt.Sprintf("No results for %q", keyword))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func kindParam(w http.ResponseWriter, r *http.Request) (types.MediaKind, bool) {
	kind, err := types.ParseMediaKind(chi.URLParam(r, "kind"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	return kind, true
}

// GetProfile handles GET /api/user/{kind}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	p, err := h.store.GetProfile(r.Context(), UserIDFromContext(r.Context()), kind)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AddFavourites handles POST /api/user/{kind}/favourites
func (h *Handler) AddFavourites(w http.ResponseWriter, r *http.Request) {
	h.addItems(w, r, true)
}

// AddToHistory handles POST /api/user/{kind}/history
func (h *Handler) AddToHistory(w http.ResponseWriter, r *http.Request) {
	h.addItems(w, r, false)
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request, favourites bool) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	var req types.AddItemsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if errs := validation.ValidateAddItemsRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, http.StatusUnprocessableEntity, "Request contains invalid items", errs)
		return
	}

	uid := UserIDFromContext(r.Context())
	var (
		p   *types.TasteProfile
		err error
	)
	if favourites {
		p, err = h.store.AddFavourites(r.Context(), uid, kind, req.Items)
	} else {
		p, err = h.store.AddToHistory(r.Context(), uid, kind, req.Items)
	}
	if err != nil {
		slog.Error("profile write failed", "component", "api", "user_id", uid, "kind", kind, "error", err)
		MapError(w, r, err)
		return
	}

	if favourites {
		activity := types.ActivityAddMovieFavourites
		if kind == types.KindTV {
			activity = types.ActivityAddTvFavourites
		}
		h.logActivity(r.Context(), uid, activity, itemTitles(req.Items))
	}
	writeJSON(w, http.StatusOK, p)
}

func itemTitles(items []types.MediaItem) string {
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, fmt.Sprintf("%s (%d)", it.Title, it.Year))
	}
	return strings.Join(titles, ", ")
}

// ListActivity handles GET /api/user/activity?limit=
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxActivityLimit {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxActivityLimit))
			return
		}
		limit = n
	}

	list, err := h.store.ListActivity(r.Context(), UserIDFromContext(r.Context()), limit)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if list == nil {
		list = []types.UserActivity{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetProvider handles GET /api/provider
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ProviderResponse{Provider: string(h.selection.Current())})
}

// SetProvider handles POST /api/provider/{provider}
func (h *Handler) SetProvider(w http.ResponseWriter, r *http.Request) {
	name, err := provider.ParseName(chi.URLParam(r, "provider"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	prev := h.selection.Set(name)
	slog.Info("provider switched", "component", "api", "from", prev, "to", name)
	writeJSON(w, http.StatusOK, types.ProviderResponse{
		Provider: string(name),
		Message:  fmt.Sprintf("switched from %s", prev),
	})
}
