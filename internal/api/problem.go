package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/hyperengineering/voyager/internal/catalog"
	"github.com/hyperengineering/voyager/internal/provider"
	"github.com/hyperengineering/voyager/internal/store"
	"github.com/hyperengineering/voyager/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusBadRequest:          {"https://voyager.dev/errors/bad-request", "Bad Request"},
	http.StatusUnauthorized:        {"https://voyager.dev/errors/unauthorized", "Unauthorized"},
	http.StatusNotFound:            {"https://voyager.dev/errors/not-found", "Not Found"},
	http.StatusUnprocessableEntity: {"https://voyager.dev/errors/validation-error", "Validation Error"},
	http.StatusTooManyRequests:     {"https://voyager.dev/errors/rate-limit", "Too Many Requests"},
	http.StatusInternalServerError: {"https://voyager.dev/errors/internal-error", "Internal Server Error"},
	http.StatusBadGateway:          {"https://voyager.dev/errors/upstream", "Bad Gateway"},
	http.StatusServiceUnavailable:  {"https://voyager.dev/errors/service-unavailable", "Service Unavailable"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: "https://voyager.dev/errors/unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	writeProblemBody(w, status, Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a Problem Details response carrying field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, status int, detail string, errs []validation.ValidationError) {
	pt := lookupProblemType(status)
	writeProblemBody(w, status, ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   status,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	})
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "component", "api", "error", err)
	}
}

// MapError converts domain errors to Problem Details responses.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, provider.ErrRateLimited):
		WriteProblem(w, r, http.StatusTooManyRequests, "Recommendation provider rate limit reached")
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, store.ErrInvalidKind):
		WriteProblem(w, r, http.StatusBadRequest, "Unknown media kind")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Catalog temporarily unavailable")
	case errors.Is(err, catalog.ErrUpstream):
		WriteProblem(w, r, http.StatusBadGateway, "Catalog upstream error")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
