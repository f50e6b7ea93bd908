package types

import (
	"fmt"
	"strings"
	"time"
)

// MediaKind selects between the movie and TV halves of the catalog.
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
)

// ParseMediaKind accepts the kind names used in routes and CLI flags.
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return KindMovie, nil
	case "tv", "tvshow", "tvshows", "show", "shows":
		return KindTV, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// MediaItem is a catalog entry as remembered in a user's profile.
// Identity is the catalog ID alone.
type MediaItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"` // release year or first-air year, 0 when unknown
	Poster   string `json:"poster,omitempty"`
	Overview string `json:"overview,omitempty"`
}

// TasteProfile holds one user's favourites and watch history for one media kind.
// Both lists are ordered sets keyed by MediaItem.ID, oldest first.
type TasteProfile struct {
	UserID       string      `json:"user_id"`
	Kind         MediaKind   `json:"kind"`
	Favourites   []MediaItem `json:"favourites"`
	WatchHistory []MediaItem `json:"watch_history"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// RecentHistory returns at most limit of the most recently added history items.
// The profile is not modified.
func (p *TasteProfile) RecentHistory(limit int) []MediaItem {
	if limit <= 0 || len(p.WatchHistory) <= limit {
		return p.WatchHistory
	}
	return p.WatchHistory[len(p.WatchHistory)-limit:]
}

// InHistory reports whether an item with the given catalog ID has been watched.
func (p *TasteProfile) InHistory(id string) bool {
	for _, item := range p.WatchHistory {
		if item.ID == id {
			return true
		}
	}
	return false
}

// UnionItems appends the items of add whose IDs are not already present in base.
// Order of base is preserved; duplicates inside add are collapsed to the first occurrence.
func UnionItems(base, add []MediaItem) []MediaItem {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]MediaItem, 0, len(base)+len(add))
	for _, item := range base {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	for _, item := range add {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// CatalogResult is one ranked hit from a catalog search. Used only for disambiguation.
type CatalogResult struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Popularity float64 `json:"popularity"`
	Overview   string  `json:"overview,omitempty"`
	PosterPath string  `json:"poster_path,omitempty"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Country is a production country as the catalog reports it.
type Country struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

// MovieDetails is the full catalog record for a movie.
type MovieDetails struct {
	ID                  int       `json:"id"`
	ImdbID              string    `json:"imdb_id"`
	Title               string    `json:"title"`
	Overview            string    `json:"overview"`
	ReleaseDate         string    `json:"release_date"`
	Tagline             string    `json:"tagline"`
	PosterPath          string    `json:"poster_path"`
	Popularity          float64   `json:"popularity"`
	Genres              []Genre   `json:"genres"`
	ProductionCountries []Country `json:"production_countries"`
}

// TvShowDetails is the full catalog record for a TV show.
type TvShowDetails struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	OriginalName    string   `json:"original_name"`
	Overview        string   `json:"overview"`
	FirstAirDate    string   `json:"first_air_date"`
	Tagline         string   `json:"tagline"`
	PosterPath      string   `json:"poster_path"`
	Popularity      float64  `json:"popularity"`
	NumberOfSeasons int      `json:"number_of_seasons"`
	Genres          []Genre  `json:"genres"`
	OriginCountry   []string `json:"origin_country"`
}

// ExternalIDs maps a catalog entry to identifiers in other databases.
type ExternalIDs struct {
	ImdbID string `json:"imdb_id"`
}

// CachedCatalogEntry is a read-through cache row holding a raw detail payload.
type CachedCatalogEntry struct {
	Kind      MediaKind `json:"kind"`
	ID        string    `json:"id"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Recommendation is the assembled response for one resolved recommendation.
type Recommendation struct {
	ID              string    `json:"id"`
	Kind            MediaKind `json:"kind"`
	Title           string    `json:"title"`
	OriginalName    string    `json:"original_name,omitempty"`
	Genres          []Genre   `json:"genres"`
	Poster          string    `json:"poster"`
	OriginCountry   string    `json:"origin_country"`
	Overview        string    `json:"overview"`
	ReleaseDate     string    `json:"release_date,omitempty"`
	FirstAirDate    string    `json:"first_air_date,omitempty"`
	Tagline         string    `json:"tagline"`
	NumberOfSeasons int       `json:"number_of_seasons,omitempty"`
	ImdbRating      string    `json:"imdb_rating,omitempty"`
}

// Activity types recorded in the user activity log.
const (
	ActivityMovieRecommendation = "MovieRecommendation"
	ActivityTvRecommendation    = "TvRecommendation"
	ActivityMovieSearch         = "MovieSearch"
	ActivityTvSearch            = "TvSearch"
	ActivityAddMovieFavourites  = "AddMovieToFavourites"
	ActivityAddTvFavourites     = "AddTvToFavourites"
)

// UserActivity is one row of the user activity log.
type UserActivity struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Details      string    `json:"details"`
	CreatedAt    time.Time `json:"created_at"`
}

// AddItemsRequest is the body of the profile write endpoints.
type AddItemsRequest struct {
	Items []MediaItem `json:"items"`
}

// ProviderResponse reports the active recommendation provider.
type ProviderResponse struct {
	Provider string `json:"provider"`
	Message  string `json:"message,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Provider     string `json:"provider"`
	ProfileCount int64  `json:"profile_count"`
}
