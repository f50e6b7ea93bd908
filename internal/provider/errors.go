package provider

import "errors"

var (
	// ErrRateLimited is returned when a provider refuses work because of quota:
	// either the local daily cap is spent or upstream 429s outlasted the retry budget.
	ErrRateLimited = errors.New("recommendation provider rate limited")

	// ErrUnknownProvider is returned by ParseName for unrecognized tags.
	ErrUnknownProvider = errors.New("unknown recommendation provider")
)
