// Package device implements the local input-capture side of the pipeline:
// polling the button hardware, turning edges into presses, and showing
// delivery status back to the operator.
package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/user/button-relay/internal/domain"
)

// Press is one debounced physical interaction, emitted on release so the
// held duration is known.
type Press struct {
	ButtonIndex int
	Type        domain.PressType
	Time        time.Time
}

// Capture polls the button reader and emits presses to a handler. The
// handler must not block: button responsiveness must never wait on remote
// API latency, so anything slow belongs behind the transport submit.
type Capture struct {
	reader    Reader
	clock     clockwork.Clock
	logger    *slog.Logger
	interval  time.Duration
	longPress time.Duration
	handler   func(Press)

	limiters  []*rate.Limiter
	prev      []bool
	pressedAt []time.Time
}

// Reader is the hardware capability Capture polls. Satisfied by the
// implementations in the button package.
type Reader interface {
	Read() ([]bool, error)
}

// NewCapture creates a capture loop over the given reader. buttons is the
// number of wired buttons; minInterval gates how often a single button may
// fire, absorbing switch bounce and trigger-happy operators.
func NewCapture(reader Reader, buttons int, interval, longPress, minInterval time.Duration, clock clockwork.Clock, logger *slog.Logger, handler func(Press)) *Capture {
	limiters := make([]*rate.Limiter, buttons)
	for i := range limiters {
		limiters[i] = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Capture{
		reader:    reader,
		clock:     clock,
		logger:    logger.With("component", "capture"),
		interval:  interval,
		longPress: longPress,
		handler:   handler,
		limiters:  limiters,
		prev:      make([]bool, buttons),
		pressedAt: make([]time.Time, buttons),
	}
}

// Run polls until the context is cancelled. Read errors are logged and the
// poll continues; a flaky input line should not kill the daemon.
func (c *Capture) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			c.poll()
		}
	}
}

func (c *Capture) poll() {
	states, err := c.reader.Read()
	if err != nil {
		c.logger.Error("failed to read button states", "error", err)
		return
	}

	now := c.clock.Now()
	for i := 0; i < len(c.prev) && i < len(states); i++ {
		switch {
		case states[i] && !c.prev[i]:
			c.pressedAt[i] = now
		case !states[i] && c.prev[i]:
			c.emit(i, now)
		}
		c.prev[i] = states[i]
	}
}

func (c *Capture) emit(index int, releasedAt time.Time) {
	if !c.limiters[index].Allow() {
		c.logger.Warn("press rate limited", "button", index)
		return
	}

	pressType := domain.PressSingle
	if releasedAt.Sub(c.pressedAt[index]) >= c.longPress {
		pressType = domain.PressLong
	}

	c.handler(Press{
		ButtonIndex: index,
		Type:        pressType,
		Time:        c.pressedAt[index],
	})
}
