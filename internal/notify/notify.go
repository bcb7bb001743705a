// Package notify delivers the end-of-run summary.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkin/internal/logger"
)

// Notifier sends a titled message somewhere a human will read it.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// New returns a webhook notifier when url is set and a log-only one
// otherwise.
func New(url string, logger *logger.Logger) Notifier {
	if url == "" {
		return &LogNotifier{logger: logger}
	}
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 15 * time.Second}, logger: logger}
}

// LogNotifier writes messages to the log.
type LogNotifier struct {
	logger *logger.Logger
}

func (n *LogNotifier) Send(ctx context.Context, title, body string) error {
	n.logger.Info("%s\n%s", title, body)
	return nil
}

// WebhookNotifier POSTs {"title": ..., "content": ...} to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

type message struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (n *WebhookNotifier) Send(ctx context.Context, title, body string) error {
	data, err := json.Marshal(message{Title: title, Content: body})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %s", resp.Status)
	}
	n.logger.Info("Notification sent: %s", title)
	return nil
}
