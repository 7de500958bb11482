package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/user/button-relay/internal/domain"
)

// SlackSink posts the formatted notification with chat.postMessage. The
// event id travels in the message metadata so duplicates caused by
// at-least-once redelivery can be recognized later.
type SlackSink struct {
	client   *http.Client
	baseURL  string
	botToken string
	logger   *slog.Logger
}

// NewSlackSink creates a message sink using the given bot token.
func NewSlackSink(client *http.Client, baseURL, botToken string, logger *slog.Logger) *SlackSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackSink{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		logger:   logger.With("component", "slack_sink"),
	}
}

// Deliver posts the event's message to the channel named in its config.
func (s *SlackSink) Deliver(ctx context.Context, event domain.Event) error {
	payload := map[string]interface{}{
		"channel": event.Config.Channel,
		"text":    event.Message(),
		"metadata": map[string]interface{}{
			"event_type": "button_press",
			"event_payload": map[string]string{
				"event_id":  event.ID,
				"device_id": event.DeviceID,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack API error: %s", result.Error)
	}

	s.logger.Debug("posted message to slack", "event_id", event.ID, "channel", event.Config.Channel)
	return nil
}
