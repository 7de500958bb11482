package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/user/button-relay/internal/domain"
	"github.com/user/button-relay/internal/domain/mocks"
)

func testPolicy() DispatchPolicy {
	return DispatchPolicy{
		SinkAttempts:        3,
		SinkBackoff:         time.Millisecond,
		SinkTimeout:         time.Second,
		MaxDeliveryAttempts: 3,
		RequeueBackoff:      time.Millisecond,
		AckPolicy:           AckOnMessage,
	}
}

func testEvent() domain.Event {
	return domain.Event{
		ID:          "evt-1",
		DeviceID:    "3",
		ButtonIndex: 1,
		PressType:   domain.PressSingle,
		PressedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Config: domain.ButtonConfig{
			DeviceID:    "3",
			ButtonIndex: 1,
			Channel:     "#help-desk",
			Template:    "Help requested at {device}:{button}",
			Tab:         "Log",
			Enabled:     true,
		},
		Attempt:         1,
		StreamMessageID: "msg-1",
	}
}

func newDispatchUC(queue *mocks.MockEventQueue, msg, log *mocks.MockSink, status *mocks.MockStatusReporter, policy DispatchPolicy) *DispatchEventUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatchEventUseCase(queue, msg, log, status, logger, clockwork.NewRealClock(), policy, nil)
}

func TestDispatchEventUseCase_Dispatch(t *testing.T) {
	t.Run("Both Sinks Succeed", func(t *testing.T) {
		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{}
		logSink := &mocks.MockSink{}
		status := &mocks.MockStatusReporter{}
		uc := newDispatchUC(queue, msgSink, logSink, status, testPolicy())

		uc.Dispatch(context.Background(), testEvent())

		if len(msgSink.Delivered) != 1 || len(logSink.Delivered) != 1 {
			t.Fatalf("expected exactly one delivery per sink, got message=%d log=%d",
				len(msgSink.Delivered), len(logSink.Delivered))
		}
		if msgSink.Delivered[0].ID != "evt-1" || logSink.Delivered[0].ID != "evt-1" {
			t.Error("expected both sinks to receive the same event id")
		}
		if len(queue.AckedMessageIDs) != 1 || queue.AckedMessageIDs[0] != "msg-1" {
			t.Errorf("expected the queue entry to be acked, got %v", queue.AckedMessageIDs)
		}
		if len(queue.RequeuedEvents) != 0 || len(queue.DeadLetters) != 0 {
			t.Error("expected no requeue or dead-letter on success")
		}
		if len(status.Reports) != 1 {
			t.Fatalf("expected one status report, got %d", len(status.Reports))
		}
		report := status.Reports[0]
		if !report.Final || !report.OK() || len(report.Outcomes) != 2 {
			t.Errorf("expected a final, fully-ok report with two outcomes, got %+v", report)
		}
	})

	t.Run("Sink Independence", func(t *testing.T) {
		// Message sink fails permanently; the log row must still be written
		// exactly once.
		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{DeliverErr: errors.New("slack is down")}
		logSink := &mocks.MockSink{}
		status := &mocks.MockStatusReporter{}
		uc := newDispatchUC(queue, msgSink, logSink, status, testPolicy())

		uc.Dispatch(context.Background(), testEvent())

		if len(logSink.Delivered) != 1 {
			t.Fatalf("expected log sink to be attempted despite message failure, got %d deliveries", len(logSink.Delivered))
		}
		if len(queue.AckedMessageIDs) != 0 {
			t.Error("expected no ack while the message sink is failing")
		}
		if len(queue.RequeuedEvents) != 1 {
			t.Fatalf("expected one requeue, got %d", len(queue.RequeuedEvents))
		}
		if got := queue.RequeuedEvents[0].Attempt; got != 2 {
			t.Errorf("expected requeued attempt counter 2, got %d", got)
		}
		if status.Reports[0].Final {
			t.Error("expected a non-final report before redelivery")
		}
	})

	t.Run("Per-Sink Retry Recovers", func(t *testing.T) {
		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{FailFirst: 2}
		logSink := &mocks.MockSink{}
		status := &mocks.MockStatusReporter{}
		uc := newDispatchUC(queue, msgSink, logSink, status, testPolicy())

		uc.Dispatch(context.Background(), testEvent())

		if msgSink.Calls() != 3 {
			t.Errorf("expected 3 message sink attempts, got %d", msgSink.Calls())
		}
		if len(queue.AckedMessageIDs) != 1 {
			t.Error("expected the event to be acked after the retry succeeded")
		}
		var msgOutcome domain.DeliveryOutcome
		for _, o := range status.Reports[0].Outcomes {
			if o.Sink == domain.SinkMessage {
				msgOutcome = o
			}
		}
		if !msgOutcome.OK || msgOutcome.Attempts != 3 {
			t.Errorf("expected ok message outcome after 3 attempts, got %+v", msgOutcome)
		}
	})

	t.Run("Dead-Letter On Exhaustion", func(t *testing.T) {
		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{DeliverErr: errors.New("slack is down")}
		logSink := &mocks.MockSink{DeliverErr: errors.New("sheets is down")}
		status := &mocks.MockStatusReporter{}
		uc := newDispatchUC(queue, msgSink, logSink, status, testPolicy())

		event := testEvent()
		event.Attempt = 3 // at the transport ceiling
		uc.Dispatch(context.Background(), event)

		if len(queue.DeadLetters) != 1 {
			t.Fatalf("expected exactly one dead-letter, got %d", len(queue.DeadLetters))
		}
		if len(queue.RequeuedEvents) != 0 {
			t.Error("expected no further redelivery after dead-lettering")
		}
		if !status.Reports[0].Final {
			t.Error("expected a final report for a dead-lettered event")
		}
	})

	t.Run("Ack Requires Both When Configured", func(t *testing.T) {
		policy := testPolicy()
		policy.AckPolicy = AckOnBoth

		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{}
		logSink := &mocks.MockSink{DeliverErr: errors.New("sheets is down")}
		status := &mocks.MockStatusReporter{}
		uc := newDispatchUC(queue, msgSink, logSink, status, policy)

		uc.Dispatch(context.Background(), testEvent())

		if len(queue.AckedMessageIDs) != 0 {
			t.Error("expected no ack under the both policy with a failed log sink")
		}
		if len(queue.RequeuedEvents) != 1 {
			t.Errorf("expected one requeue, got %d", len(queue.RequeuedEvents))
		}
	})

	t.Run("Status Reporter Failure Never Escalates", func(t *testing.T) {
		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{}
		logSink := &mocks.MockSink{}
		status := &mocks.MockStatusReporter{ReportErr: errors.New("device offline")}
		uc := newDispatchUC(queue, msgSink, logSink, status, testPolicy())

		uc.Dispatch(context.Background(), testEvent())

		if len(queue.AckedMessageIDs) != 1 {
			t.Error("expected the event to be acked despite the status report failure")
		}
	})

	t.Run("Rendered Message Scenario", func(t *testing.T) {
		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{}
		logSink := &mocks.MockSink{}
		status := &mocks.MockStatusReporter{}
		uc := newDispatchUC(queue, msgSink, logSink, status, testPolicy())

		uc.Dispatch(context.Background(), testEvent())

		if got := msgSink.Delivered[0].Message(); got != "Help requested at 3:1" {
			t.Errorf("unexpected rendered message: %q", got)
		}
	})
}

func TestDispatchEventUseCase_ProcessBatch(t *testing.T) {
	t.Run("Dispatches Every Dequeued Event", func(t *testing.T) {
		first := testEvent()
		second := testEvent()
		second.ID = "evt-2"
		second.StreamMessageID = "msg-2"

		queue := &mocks.MockEventQueue{DequeueResult: []domain.Event{first, second}}
		msgSink := &mocks.MockSink{}
		logSink := &mocks.MockSink{}
		status := &mocks.MockStatusReporter{}
		uc := newDispatchUC(queue, msgSink, logSink, status, testPolicy())

		count, err := uc.ProcessBatch(context.Background(), 10)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 2 {
			t.Errorf("expected processed count 2, got %d", count)
		}
		if len(queue.AckedMessageIDs) != 2 {
			t.Errorf("expected both entries acked, got %v", queue.AckedMessageIDs)
		}
	})

	t.Run("Dequeue Error", func(t *testing.T) {
		queue := &mocks.MockEventQueue{DequeueErr: errors.New("redis connection failed")}
		uc := newDispatchUC(queue, &mocks.MockSink{}, &mocks.MockSink{}, &mocks.MockStatusReporter{}, testPolicy())

		count, err := uc.ProcessBatch(context.Background(), 10)

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if count != 0 {
			t.Errorf("expected processed count 0, got %d", count)
		}
	})

	t.Run("No Events", func(t *testing.T) {
		queue := &mocks.MockEventQueue{}
		msgSink := &mocks.MockSink{}
		uc := newDispatchUC(queue, msgSink, &mocks.MockSink{}, &mocks.MockStatusReporter{}, testPolicy())

		count, err := uc.ProcessBatch(context.Background(), 10)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 0 {
			t.Errorf("expected processed count 0, got %d", count)
		}
		if msgSink.Calls() != 0 {
			t.Error("sinks should not be called with no events")
		}
	})
}
