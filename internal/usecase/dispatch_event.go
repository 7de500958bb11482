package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/user/button-relay/internal/adapter/metrics"
	"github.com/user/button-relay/internal/domain"
)

// AckPolicy decides when a dispatched event is acknowledged to the
// transport instead of being redelivered.
type AckPolicy string

const (
	// AckOnMessage acknowledges once the message sink succeeded, even if
	// the log write failed. A missed log row should not endlessly redeliver
	// an already-notified event.
	AckOnMessage AckPolicy = "message"
	// AckOnBoth requires both sinks to succeed before acknowledging.
	AckOnBoth AckPolicy = "both"
)

// DispatchPolicy bounds the retry behavior of the handler.
type DispatchPolicy struct {
	// SinkAttempts and SinkBackoff shape the short per-sink retry loop.
	SinkAttempts int
	SinkBackoff  time.Duration
	// SinkTimeout bounds one sink call, converting a hang into a retryable
	// failure.
	SinkTimeout time.Duration
	// MaxDeliveryAttempts is the transport-level ceiling; past it the event
	// is dead-lettered.
	MaxDeliveryAttempts int
	// RequeueBackoff is the base of the exponential wait before redelivery.
	RequeueBackoff time.Duration
	AckPolicy      AckPolicy
}

// DispatchEventUseCase fans a received event out to the message and log
// sinks independently, reports the combined outcome back to the device, and
// decides between acknowledge, requeue, and dead-letter.
type DispatchEventUseCase struct {
	queue    domain.EventQueue
	messages domain.MessageSink
	logs     domain.LogSink
	status   domain.StatusReporter
	logger   *slog.Logger
	clock    clockwork.Clock
	policy   DispatchPolicy
	metrics  *metrics.HandlerMetrics
}

// NewDispatchEventUseCase creates a new DispatchEventUseCase. Pass nil
// metrics to disable instrumentation (e.g. in tests).
func NewDispatchEventUseCase(queue domain.EventQueue, messages domain.MessageSink, logs domain.LogSink, status domain.StatusReporter, logger *slog.Logger, clock clockwork.Clock, policy DispatchPolicy, m *metrics.HandlerMetrics) *DispatchEventUseCase {
	return &DispatchEventUseCase{
		queue:    queue,
		messages: messages,
		logs:     logs,
		status:   status,
		logger:   logger,
		clock:    clock,
		policy:   policy,
		metrics:  m,
	}
}

// ProcessBatch dequeues a batch of events and dispatches each on its own
// goroutine. Events share no mutable state, so one logical worker per event
// is safe.
func (uc *DispatchEventUseCase) ProcessBatch(ctx context.Context, count int) (int, error) {
	events, err := uc.queue.Dequeue(ctx, count)
	if err != nil {
		uc.logger.Error("failed to dequeue events", "error", err)
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	var wg sync.WaitGroup
	for _, event := range events {
		wg.Add(1)
		go func(ev domain.Event) {
			defer wg.Done()
			uc.Dispatch(ctx, ev)
		}(event)
	}
	wg.Wait()

	return len(events), nil
}

// Dispatch runs one event through the fan-out state machine: both sinks are
// attempted independently and in no particular order, then the outcome pair
// is reported and the ack decision made.
func (uc *DispatchEventUseCase) Dispatch(ctx context.Context, event domain.Event) {
	var (
		wg         sync.WaitGroup
		msgOutcome domain.DeliveryOutcome
		logOutcome domain.DeliveryOutcome
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		msgOutcome = uc.deliverWithRetry(ctx, domain.SinkMessage, event, uc.messages.Deliver)
	}()
	go func() {
		defer wg.Done()
		logOutcome = uc.deliverWithRetry(ctx, domain.SinkLog, event, uc.logs.Deliver)
	}()
	wg.Wait()

	acked := uc.ackSatisfied(msgOutcome, logOutcome)
	exhausted := event.Attempt >= uc.policy.MaxDeliveryAttempts
	final := acked || exhausted

	uc.report(ctx, event, final, msgOutcome, logOutcome)

	switch {
	case acked:
		if err := uc.queue.Ack(ctx, event.StreamMessageID); err != nil {
			// The event stays pending and will be redelivered; the sinks
			// carry the event id, so the duplicate is recognizable.
			uc.logger.Error("failed to ack event, it will be redelivered", "event_id", event.ID, "error", err)
			return
		}
		uc.countEvent("acked")
		uc.logger.Info("event dispatched",
			"event_id", event.ID,
			"message_ok", msgOutcome.OK,
			"log_ok", logOutcome.OK,
			"attempt", event.Attempt)

	case exhausted:
		reason := fmt.Sprintf("retries exhausted after %d delivery attempts: message=%s log=%s",
			event.Attempt, outcomeString(msgOutcome), outcomeString(logOutcome))
		if err := uc.queue.MoveToDeadLetter(ctx, event, reason); err != nil {
			uc.logger.Error("failed to dead-letter event", "event_id", event.ID, "error", err)
			return
		}
		uc.countEvent("dead_lettered")

	default:
		// Exponential backoff before redelivery, doubling per attempt.
		backoff := uc.policy.RequeueBackoff << (event.Attempt - 1)
		select {
		case <-ctx.Done():
			return
		case <-uc.clock.After(backoff):
		}
		if err := uc.queue.Requeue(ctx, event); err != nil {
			uc.logger.Error("failed to requeue event", "event_id", event.ID, "error", err)
			return
		}
		uc.countEvent("requeued")
	}
}

func (uc *DispatchEventUseCase) ackSatisfied(msg, log domain.DeliveryOutcome) bool {
	if uc.policy.AckPolicy == AckOnBoth {
		return msg.OK && log.OK
	}
	return msg.OK
}

// deliverWithRetry runs one sink's short retry loop. Each call is bounded
// by the sink timeout; backoff doubles between attempts.
func (uc *DispatchEventUseCase) deliverWithRetry(ctx context.Context, sinkName string, event domain.Event, deliver func(context.Context, domain.Event) error) domain.DeliveryOutcome {
	outcome := domain.DeliveryOutcome{EventID: event.ID, Sink: sinkName}

	var lastErr error
	for attempt := 1; attempt <= uc.policy.SinkAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				outcome.Attempts = attempt - 1
				outcome.Error = lastErr.Error()
				return outcome
			case <-uc.clock.After(uc.policy.SinkBackoff << (attempt - 2)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, uc.policy.SinkTimeout)
		err := deliver(callCtx, event)
		cancel()

		outcome.Attempts = attempt
		if err == nil {
			outcome.OK = true
			uc.countSink(sinkName, "ok")
			return outcome
		}

		lastErr = err
		uc.logger.Warn("sink delivery failed",
			"event_id", event.ID, "sink", sinkName, "attempt", attempt, "error", err)
	}

	outcome.Error = lastErr.Error()
	uc.countSink(sinkName, "failed")
	return outcome
}

// report sends the combined outcome pair back to the device. Best-effort:
// a failed report never affects the pipeline.
func (uc *DispatchEventUseCase) report(ctx context.Context, event domain.Event, final bool, outcomes ...domain.DeliveryOutcome) {
	report := domain.StatusReport{
		EventID:     event.ID,
		DeviceID:    event.DeviceID,
		ButtonIndex: event.ButtonIndex,
		Outcomes:    outcomes,
		Final:       final,
	}
	if err := uc.status.Report(ctx, report); err != nil {
		if uc.metrics != nil {
			uc.metrics.StatusReportErrors.Inc()
		}
		uc.logger.Warn("failed to report status to device", "event_id", event.ID, "error", err)
	}
}

func (uc *DispatchEventUseCase) countEvent(result string) {
	if uc.metrics != nil {
		uc.metrics.EventsTotal.WithLabelValues(result).Inc()
	}
}

func (uc *DispatchEventUseCase) countSink(sink, status string) {
	if uc.metrics != nil {
		uc.metrics.SinkDeliveriesTotal.WithLabelValues(sink, status).Inc()
	}
}

func outcomeString(o domain.DeliveryOutcome) string {
	if o.OK {
		return "ok"
	}
	return fmt.Sprintf("failed(%s)", o.Error)
}
