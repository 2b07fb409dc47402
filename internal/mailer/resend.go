package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when the Resend key is not configured
var ErrMissingAPIKey = errors.New("RESEND_API_KEY is not configured")

// APIError is a non-2xx answer from the email API
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("resend returned status: %d", e.StatusCode)
	}
	return fmt.Sprintf("resend returned status %d: %s", e.StatusCode, e.Message)
}

type ResendMailer struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewResendMailer(baseURL, apiKey string, timeout time.Duration) *ResendMailer {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendMailer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (m *ResendMailer) Name() string {
	return "resend"
}

// Send posts the message to /emails and returns the provider message id.
func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	if m.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	payload := map[string]interface{}{
		"from":    msg.From,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}
	if msg.ReplyTo != "" {
		payload["reply_to"] = msg.ReplyTo
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil {
			apiErr.Name = errBody.Name
			apiErr.Message = errBody.Message
		}
		return "", apiErr
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no message id returned from resend")
	}

	return result.ID, nil
}
