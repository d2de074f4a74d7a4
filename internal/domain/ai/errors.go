package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrOverloaded is the transient "model overloaded" signal (HTTP 503 / UNAVAILABLE). Only this one is retried.
var ErrOverloaded = errors.New("ai model overloaded")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty ai response")

// ErrMalformedResponse is returned when the model text is not the expected JSON object.
var ErrMalformedResponse = errors.New("malformed ai response")
