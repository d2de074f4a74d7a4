package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
	"github.com/bryanwahyu/moto-intake/internal/infra/ai/prompt"
)

const DefaultModel = "gemini-3-flash-preview"

// Client sends photos and the description to Gemini generateContent in one call.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini API client. baseURL is optional.
func NewClient(ctx context.Context, apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) Analyze(ctx context.Context, in ai.Request) (ai.Result, error) {
	parts := make([]*genai.Part, 0, len(in.Photos)+1)
	for _, p := range in.Photos {
		parts = append(parts, genai.NewPartFromBytes(p.Data, p.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(prompt.GetUserPrompt(in.Description)))

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return ai.Result{}, classify(err)
	}
	return prompt.ParseResult(resp.Text())
}

// classify maps Gemini API errors onto the ai sentinels.
func classify(err error) error {
	code, status := 0, ""
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiErrPtr):
		code, status = apiErrPtr.Code, apiErrPtr.Status
	}
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
	case code == http.StatusServiceUnavailable || status == "UNAVAILABLE":
		return fmt.Errorf("%w: %v", ai.ErrOverloaded, err)
	}
	return fmt.Errorf("gemini generate content: %w", err)
}
