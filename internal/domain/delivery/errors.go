package delivery

import "fmt"

// UpstreamError is a non-success answer from an external service.
// Body keeps the raw response for callers that inspect it.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP Error: %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

// Detail is the error text without the service name, as shown to the user.
func (e *UpstreamError) Detail() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP Error: %d", e.StatusCode)
	}
	return e.Message
}
