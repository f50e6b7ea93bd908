package recommend

import "errors"

var (
	// ErrMalformedRecommendation means the provider answered, but not in the
	// "<name>\n<year>" shape. It is not retried.
	ErrMalformedRecommendation = errors.New("malformed recommendation")

	// ErrMissingReleaseYear means a profile item cannot be rendered for the prompt.
	ErrMissingReleaseYear = errors.New("profile item has no release year")
)
