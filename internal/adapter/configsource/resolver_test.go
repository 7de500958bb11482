package configsource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/user/button-relay/internal/domain"
	"github.com/user/button-relay/internal/domain/mocks"
)

func testRows() []domain.ButtonConfig {
	return []domain.ButtonConfig{
		{DeviceID: "3", ButtonIndex: 1, Channel: "#help-desk", Template: "Help requested at {device}:{button}", Tab: "Log", Enabled: true},
		{DeviceID: "3", ButtonIndex: 2, Channel: "#facilities", Template: "Supplies needed", Tab: "Log", Enabled: false},
	}
}

func newTestResolver(source domain.ConfigSource, ttl time.Duration, clock clockwork.Clock) *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(source, ttl, clock, logger, nil)
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("Cache Hit Within TTL", func(t *testing.T) {
		source := &mocks.MockConfigSource{Rows: testRows()}
		clock := clockwork.NewFakeClock()
		r := newTestResolver(source, time.Hour, clock)

		first, err := r.Resolve(context.Background(), "3", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		clock.Advance(30 * time.Minute)

		second, err := r.Resolve(context.Background(), "3", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if first != second {
			t.Error("expected identical config within the TTL window")
		}
		if source.Calls() != 1 {
			t.Errorf("expected exactly one fetch, got %d", source.Calls())
		}
	})

	t.Run("Refetch After TTL Expiry", func(t *testing.T) {
		source := &mocks.MockConfigSource{Rows: testRows()}
		clock := clockwork.NewFakeClock()
		r := newTestResolver(source, time.Hour, clock)

		if _, err := r.Resolve(context.Background(), "3", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		clock.Advance(time.Hour + time.Minute)

		if _, err := r.Resolve(context.Background(), "3", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if source.Calls() != 2 {
			t.Errorf("expected a second fetch after expiry, got %d", source.Calls())
		}
	})

	t.Run("No Fetch Storm Under Concurrent Expiry", func(t *testing.T) {
		source := &mocks.MockConfigSource{Rows: testRows()}
		clock := clockwork.NewFakeClock()
		r := newTestResolver(source, time.Hour, clock)

		if _, err := r.Resolve(context.Background(), "3", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		clock.Advance(2 * time.Hour)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := r.Resolve(context.Background(), "3", 1); err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}()
		}
		wg.Wait()

		if source.Calls() != 2 {
			t.Errorf("expected exactly one refresh fetch under concurrency, got %d total fetches", source.Calls())
		}
	})

	t.Run("Stale Table Served When Refresh Fails", func(t *testing.T) {
		source := &mocks.MockConfigSource{Rows: testRows()}
		clock := clockwork.NewFakeClock()
		r := newTestResolver(source, time.Hour, clock)

		fresh, err := r.Resolve(context.Background(), "3", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		clock.Advance(2 * time.Hour)
		source.FetchErr = errors.New("sheets is down")

		stale, err := r.Resolve(context.Background(), "3", 1)
		if err != nil {
			t.Fatalf("expected the stale table to be served, got %v", err)
		}
		if stale != fresh {
			t.Error("expected the stale value to match the last good fetch")
		}
	})

	t.Run("Source Unavailable Without Cache", func(t *testing.T) {
		source := &mocks.MockConfigSource{FetchErr: errors.New("sheets is down")}
		r := newTestResolver(source, time.Hour, clockwork.NewFakeClock())

		_, err := r.Resolve(context.Background(), "3", 1)

		if !errors.Is(err, domain.ErrConfigSourceUnavailable) {
			t.Fatalf("expected ErrConfigSourceUnavailable, got %v", err)
		}
	})

	t.Run("Config Not Found", func(t *testing.T) {
		source := &mocks.MockConfigSource{Rows: testRows()}
		r := newTestResolver(source, time.Hour, clockwork.NewFakeClock())

		_, err := r.Resolve(context.Background(), "unknown-device", 7)

		if !errors.Is(err, domain.ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("Invalidate Forces Refetch", func(t *testing.T) {
		source := &mocks.MockConfigSource{Rows: testRows()}
		r := newTestResolver(source, time.Hour, clockwork.NewFakeClock())

		if _, err := r.Resolve(context.Background(), "3", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		r.Invalidate()
		if _, err := r.Resolve(context.Background(), "3", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if source.Calls() != 2 {
			t.Errorf("expected a fetch after invalidation, got %d", source.Calls())
		}
	})
}
