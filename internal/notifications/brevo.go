package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBrevoBaseURL = "https://api.brevo.com/v3"

// BrevoTransport sends through the Brevo transactional email API.
type BrevoTransport struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoPayload struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// NewBrevoTransport builds a Brevo transport. An empty baseURL uses the public API.
func NewBrevoTransport(apiKey, baseURL string) *BrevoTransport {
	if baseURL == "" {
		baseURL = defaultBrevoBaseURL
	}
	return &BrevoTransport{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *BrevoTransport) Name() string { return "brevo" }

func (t *BrevoTransport) Deliver(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(brevoPayload{
		Sender:      brevoContact{Email: env.FromEmail, Name: env.FromName},
		To:          []brevoContact{{Email: env.ToEmail, Name: env.ToName}},
		Subject:     env.Subject,
		HTMLContent: env.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/smtp/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", t.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &ProviderError{Provider: t.Name(), Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return nil
}
