package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/moto-intake/internal/domain/delivery"
)

const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// Client sends templated e-mails through the EmailJS REST API.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{endpoint: endpoint, client: &http.Client{Timeout: 30 * time.Second}}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send posts one message. EmailJS answers errors in plain text, which becomes the error message.
func (c *Client) Send(ctx context.Context, acct delivery.MailAccount, m delivery.Mail) error {
	params := make(map[string]string, len(m.Params)+1)
	for k, v := range m.Params {
		params[k] = v
	}
	if _, ok := params["to_email"]; !ok {
		params["to_email"] = m.To
	}
	body, err := json.Marshal(sendRequest{
		ServiceID:      acct.ServiceID,
		TemplateID:     acct.TemplateID,
		UserID:         acct.PublicKey,
		AccessToken:    acct.PrivateKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return &delivery.UpstreamError{
			Service:    "emailjs",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
			Body:       string(raw),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
