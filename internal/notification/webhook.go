package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type webhookMessage struct {
	Embeds []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Notifier posts run outcomes to Discord-style webhooks. Empty URLs make
// the corresponding Send a no-op so callers never need to guard.
type Notifier struct {
	errorURL   string
	successURL string
	client     *http.Client
}

func NewNotifier(errorURL, successURL string) *Notifier {
	return &Notifier{
		errorURL:   errorURL,
		successURL: successURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) SendError(message string) error {
	if n.errorURL == "" {
		return nil
	}
	return n.post(n.errorURL, webhookEmbed{
		Title:       "🚨 GVI batch failed",
		Description: message,
		Color:       16711680, // Red color
	})
}

func (n *Notifier) SendSuccess(message string) error {
	if n.successURL == "" {
		return nil
	}
	return n.post(n.successURL, webhookEmbed{
		Title:       "✅ GVI batch finished",
		Description: message,
		Color:       65280, // Green color
	})
}

func (n *Notifier) post(url string, embed webhookEmbed) error {
	payload, err := json.Marshal(webhookMessage{Embeds: []webhookEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := n.client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send webhook notification, status code: %d", resp.StatusCode)
	}

	return nil
}
