package entity

import "errors"

// Standard domain errors
var (
	ErrQuotaExceeded     = errors.New("rate limit exceeded: too many requests")
	ErrNoSources         = errors.New("no relevant sources found")
	ErrGenerationFailure = errors.New("generation failed")
	ErrToolDispatch      = errors.New("tool dispatch failed")
	ErrCacheFault        = errors.New("answer cache unavailable")
	ErrRateStoreFault    = errors.New("rate store unavailable")
	ErrFetchFailure      = errors.New("page fetch failed")
	ErrInvalidRequest    = errors.New("invalid request parameters")
)

// User-facing messages. None of them carries error detail.
const (
	QuotaExceededMessage = "Rate limit exceeded. Please try again later."
	NoSourcesMessage     = "No relevant sources found."
	InternalErrorMessage = "An internal error occurred. Please try again later."
	StreamErrorMessage   = "An error occurred while generating the answer."
)
