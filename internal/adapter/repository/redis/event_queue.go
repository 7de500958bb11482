package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/button-relay/internal/domain"
)

// EventQueue implements domain.EventQueue on Redis Streams. Events are
// XADDed by the device daemon and read by handler workers through a
// consumer group; entries left pending past the visibility timeout are
// reclaimed with XAUTOCLAIM, which is what gives the at-least-once
// guarantee when a worker dies mid-event.
type EventQueue struct {
	client            *redis.Client
	logger            *slog.Logger
	stream            string
	dlqStream         string
	group             string
	consumer          string
	visibilityTimeout time.Duration
}

// NewEventQueue creates a Redis-backed event queue and ensures the consumer
// group exists. Producers may pass an empty consumer name.
func NewEventQueue(client *redis.Client, logger *slog.Logger, stream, dlqStream, group, consumer string, visibilityTimeout time.Duration) (*EventQueue, error) {
	q := &EventQueue{
		client:            client,
		logger:            logger.With("component", "event_queue"),
		stream:            stream,
		dlqStream:         dlqStream,
		group:             group,
		consumer:          consumer,
		visibilityTimeout: visibilityTimeout,
	}

	if err := q.setupConsumerGroup(context.Background()); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *EventQueue) setupConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Enqueue durably submits an event to the stream. A failure here means the
// press has no durable record and is surfaced as ErrSubmissionFailed.
func (q *EventQueue) Enqueue(ctx context.Context, event domain.Event) error {
	if err := q.add(ctx, q.stream, event, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	return nil
}

// Dequeue reads up to count events for this consumer. Entries pending past
// the visibility timeout on other consumers are claimed first, then new
// entries are read with a short block.
func (q *EventQueue) Dequeue(ctx context.Context, count int) ([]domain.Event, error) {
	events, err := q.claimStale(ctx, count)
	if err != nil {
		return nil, err
	}
	if len(events) >= count {
		return events, nil
	}

	args := &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(count - len(events)),
		Block:    2 * time.Second,
	}

	streams, err := q.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return events, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	for _, stream := range streams {
		events = append(events, q.decodeMessages(stream.Messages)...)
	}
	return events, nil
}

// claimStale reclaims entries another consumer read but never acknowledged
// within the visibility timeout.
func (q *EventQueue) claimStale(ctx context.Context, count int) ([]domain.Event, error) {
	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.visibilityTimeout,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XAUTOCLAIM from redis: %w", err)
	}

	if len(messages) > 0 {
		q.logger.Warn("reclaimed stale pending events", "count", len(messages))
	}
	return q.decodeMessages(messages), nil
}

// Requeue schedules another delivery of the event with its attempt counter
// incremented, then retires the entry it was read as. Ordering matters: a
// crash between the two leaves a duplicate, never a loss.
func (q *EventQueue) Requeue(ctx context.Context, event domain.Event) error {
	previousID := event.StreamMessageID
	event.Attempt++

	if err := q.add(ctx, q.stream, event, nil); err != nil {
		return fmt.Errorf("failed to requeue event %s: %w", event.ID, err)
	}
	if err := q.Ack(ctx, previousID); err != nil {
		return err
	}

	q.logger.Info("requeued event for redelivery", "event_id", event.ID, "attempt", event.Attempt)
	return nil
}

// Ack acknowledges processed entries in the stream.
func (q *EventQueue) Ack(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, q.group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// MoveToDeadLetter records the event on the dead-letter stream and retires
// its queue entry so it is never redelivered.
func (q *EventQueue) MoveToDeadLetter(ctx context.Context, event domain.Event, reason string) error {
	extra := map[string]interface{}{
		"reason":          reason,
		"original_stream": q.stream,
		"original_msg_id": event.StreamMessageID,
		"failed_at":       time.Now().UTC().Format(time.RFC3339),
	}
	if err := q.add(ctx, q.dlqStream, event, extra); err != nil {
		return fmt.Errorf("failed to dead-letter event %s: %w", event.ID, err)
	}
	if err := q.Ack(ctx, event.StreamMessageID); err != nil {
		return err
	}

	q.logger.Warn("moved event to dead-letter stream",
		"event_id", event.ID, "attempt", event.Attempt, "reason", reason)
	return nil
}

func (q *EventQueue) add(ctx context.Context, stream string, event domain.Event, extra map[string]interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	values := map[string]interface{}{"payload": payload}
	for k, v := range extra {
		values[k] = v
	}

	if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream %s: %w", stream, err)
	}
	return nil
}

func (q *EventQueue) decodeMessages(messages []redis.XMessage) []domain.Event {
	events := make([]domain.Event, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			q.logger.Warn("invalid message format in stream, skipping", "message_id", msg.ID)
			continue
		}

		var event domain.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			q.logger.Warn("failed to unmarshal event from stream, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		event.StreamMessageID = msg.ID
		events = append(events, event)
	}
	return events
}

func isBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
