package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/user/button-relay/internal/domain"
)

const statusChannelPrefix = "button_status:"

// StatusChannel is the lightweight return path from the remote handler to
// the device, implemented as Redis pub/sub. Reports are fire-and-forget: a
// device that is offline simply misses them, which is acceptable for a
// best-effort visual confirmation.
type StatusChannel struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStatusChannel creates a status channel over the given Redis client.
func NewStatusChannel(client *redis.Client, logger *slog.Logger) *StatusChannel {
	return &StatusChannel{
		client: client,
		logger: logger.With("component", "status_channel"),
	}
}

// Report publishes the status report on the device's channel.
func (s *StatusChannel) Report(ctx context.Context, report domain.StatusReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal status report: %w", err)
	}

	if err := s.client.Publish(ctx, statusChannelPrefix+report.DeviceID, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish status report: %w", err)
	}
	return nil
}

// Subscribe delivers status reports for the given device to handler until
// the context is cancelled. Malformed payloads are logged and skipped.
func (s *StatusChannel) Subscribe(ctx context.Context, deviceID string, handler func(domain.StatusReport)) error {
	sub := s.client.Subscribe(ctx, statusChannelPrefix+deviceID)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var report domain.StatusReport
			if err := json.Unmarshal([]byte(msg.Payload), &report); err != nil {
				s.logger.Warn("failed to unmarshal status report, skipping", "error", err)
				continue
			}
			handler(report)
		}
	}
}
