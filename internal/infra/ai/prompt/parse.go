package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
)

// ParseResult decodes the model reply. Code fences and text around the object are ignored;
// list values are joined line by line.
func ParseResult(text string) (ai.Result, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return ai.Result{}, ai.ErrEmptyResponse
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ai.Result{}, fmt.Errorf("%w: no json object", ai.ErrMalformedResponse)
	}

	var raw struct {
		Damages  json.RawMessage `json:"damages"`
		Symptoms json.RawMessage `json:"symptoms"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return ai.Result{}, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	damages, err := flatten(raw.Damages)
	if err != nil {
		return ai.Result{}, fmt.Errorf("%w: damages: %v", ai.ErrMalformedResponse, err)
	}
	symptoms, err := flatten(raw.Symptoms)
	if err != nil {
		return ai.Result{}, fmt.Errorf("%w: symptoms: %v", ai.ErrMalformedResponse, err)
	}
	return ai.Result{Damages: damages, Symptoms: symptoms}, nil
}

func flatten(v json.RawMessage) (string, error) {
	if len(v) == 0 || string(v) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var list []string
	if err := json.Unmarshal(v, &list); err != nil {
		return "", err
	}
	for i := range list {
		list[i] = "- " + strings.TrimSpace(list[i])
	}
	return strings.Join(list, "\n"), nil
}
