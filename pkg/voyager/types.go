package voyager

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperengineering/voyager/internal/types"
)

// Config holds the Voyager client configuration
type Config struct {
	BaseURL string        // Voyager service URL, e.g. http://localhost:8080
	APIKey  string        // Bearer key for the provider endpoints
	UserID  string        // Sent as x-uid on user-scoped calls
	Timeout time.Duration // Per-request timeout (default: 90 seconds)
}

// Wire types shared with the service.
type (
	MediaKind        = types.MediaKind
	MediaItem        = types.MediaItem
	TasteProfile     = types.TasteProfile
	CatalogResult    = types.CatalogResult
	Recommendation   = types.Recommendation
	UserActivity     = types.UserActivity
	HealthResponse   = types.HealthResponse
	ProviderResponse = types.ProviderResponse
)

// Media kinds.
const (
	KindMovie = types.KindMovie
	KindTV    = types.KindTV
)

var (
	// ErrNotFound matches an APIError with status 404.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited matches an APIError with status 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized matches an APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a problem+json response from the service.
type APIError struct {
	Status int          `json:"status"`
	Type   string       `json:"type"`
	Title  string       `json:"title"`
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("voyager: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("voyager: %d %s", e.Status, e.Detail)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}
