package alert

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

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// WebhookAlerter posts topology events as JSON to a webhook URL.
type WebhookAlerter struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookAlerter creates a webhook alerter. Configured headers are sent
// with every request and may override the defaults.
func NewWebhookAlerter(url string, headers map[string]string) *WebhookAlerter {
	return &WebhookAlerter{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookAlerter) Name() string {
	return "webhook"
}

// Send posts the event. The event type travels in X-Peerscope-Event so
// receivers can route without decoding the body.
func (w *WebhookAlerter) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "peerscope-alerter")
	req.Header.Set("X-Peerscope-Event", event.EventType)
	if event.ID != "" {
		req.Header.Set("Idempotency-Key", event.ID)
	}
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort cleanup

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			return fmt.Errorf("webhook %s returned status %d", w.url, resp.StatusCode)
		}
		return fmt.Errorf("webhook %s returned status %d: %s", w.url, resp.StatusCode, msg)
	}

	return nil
}
