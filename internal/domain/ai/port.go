package ai

import "context"

// Photo is one image handed to the model as inline data.
type Photo struct {
	MimeType string
	Data     []byte
}

// Request is a single damage-analysis call.
type Request struct {
	Description string
	Photos      []Photo
}

// Result is the model's draft: visible damages and likely technical symptoms.
type Result struct {
	Damages  string `json:"damages"`
	Symptoms string `json:"symptoms"`
}

// Client is implemented by each AI provider adapter.
type Client interface {
	Analyze(ctx context.Context, req Request) (Result, error)
	Model() string
}
