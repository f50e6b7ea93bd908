// Package provider holds the LLM backends that turn a taste profile into a raw
// "<name>\n<year>" answer, and the resolver that picks the active one.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/voyager/internal/types"
)

// Name identifies a provider backend.
type Name string

const (
	Gemini Name = "gemini"
	Groq   Name = "groq"
)

// ParseName maps a case-insensitive tag to a provider Name.
func ParseName(s string) (Name, error) {
	switch Name(strings.ToLower(strings.TrimSpace(s))) {
	case Gemini:
		return Gemini, nil
	case Groq:
		return Groq, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// Client asks one LLM backend for a single recommendation.
//
// Both methods return the trimmed free-text answer, or "" with a nil error when the
// backend produced nothing usable. A non-nil error means the call must not be
// treated as a soft miss: ErrRateLimited, or the context ending.
type Client interface {
	Name() Name
	RecommendMovie(ctx context.Context, favourites, history []string, temperature float64) (string, error)
	RecommendTvShow(ctx context.Context, favourites, history []string, temperature float64) (string, error)
}

// Recommend dispatches to the kind-specific method of c.
func Recommend(ctx context.Context, c Client, kind types.MediaKind, favourites, history []string, temperature float64) (string, error) {
	if kind == types.KindTV {
		return c.RecommendTvShow(ctx, favourites, history, temperature)
	}
	return c.RecommendMovie(ctx, favourites, history, temperature)
}
