package mocks

import (
	"context"
	"sync"

	"github.com/user/button-relay/internal/domain"
)

// MockConfigSource is a mock implementation of domain.ConfigSource.
type MockConfigSource struct {
	mu         sync.Mutex
	Rows       []domain.ButtonConfig
	FetchErr   error
	FetchCalls int
}

func (m *MockConfigSource) FetchAll(ctx context.Context) ([]domain.ButtonConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	rows := make([]domain.ButtonConfig, len(m.Rows))
	copy(rows, m.Rows)
	return rows, nil
}

func (m *MockConfigSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FetchCalls
}

// MockResolver is a mock implementation of domain.ConfigResolver.
type MockResolver struct {
	Config     domain.ButtonConfig
	ResolveErr error
}

func (m *MockResolver) Resolve(ctx context.Context, deviceID string, buttonIndex int) (domain.ButtonConfig, error) {
	if m.ResolveErr != nil {
		return domain.ButtonConfig{}, m.ResolveErr
	}
	return m.Config, nil
}

// MockEventQueue is a mock implementation of domain.EventQueue.
type MockEventQueue struct {
	mu              sync.Mutex
	EnqueuedEvents  []domain.Event
	DequeueResult   []domain.Event
	RequeuedEvents  []domain.Event
	AckedMessageIDs []string
	DeadLetters     []domain.Event
	DeadLetterWhys  []string
	EnqueueErr      error
	DequeueErr      error
	RequeueErr      error
	AckErr          error
	DeadLetterErr   error
}

func (m *MockEventQueue) Enqueue(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.EnqueuedEvents = append(m.EnqueuedEvents, event)
	return nil
}

func (m *MockEventQueue) Dequeue(ctx context.Context, count int) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DequeueErr != nil {
		return nil, m.DequeueErr
	}
	events := m.DequeueResult
	m.DequeueResult = nil
	return events, nil
}

func (m *MockEventQueue) Requeue(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RequeueErr != nil {
		return m.RequeueErr
	}
	event.Attempt++
	m.RequeuedEvents = append(m.RequeuedEvents, event)
	return nil
}

func (m *MockEventQueue) Ack(ctx context.Context, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockEventQueue) MoveToDeadLetter(ctx context.Context, event domain.Event, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeadLetterErr != nil {
		return m.DeadLetterErr
	}
	m.DeadLetters = append(m.DeadLetters, event)
	m.DeadLetterWhys = append(m.DeadLetterWhys, reason)
	return nil
}

// MockSink is a mock implementation of domain.MessageSink and domain.LogSink.
type MockSink struct {
	mu        sync.Mutex
	Delivered []domain.Event
	// FailFirst makes the first N deliveries fail before succeeding.
	FailFirst  int
	DeliverErr error
	calls      int
}

func (m *MockSink) Deliver(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.DeliverErr != nil {
		return m.DeliverErr
	}
	if m.calls <= m.FailFirst {
		return context.DeadlineExceeded
	}
	m.Delivered = append(m.Delivered, event)
	return nil
}

func (m *MockSink) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockStatusReporter is a mock implementation of domain.StatusReporter.
type MockStatusReporter struct {
	mu        sync.Mutex
	Reports   []domain.StatusReport
	ReportErr error
}

func (m *MockStatusReporter) Report(ctx context.Context, report domain.StatusReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReportErr != nil {
		return m.ReportErr
	}
	m.Reports = append(m.Reports, report)
	return nil
}
