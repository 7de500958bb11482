package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/button-relay/internal/domain"
)

// BuildEventUseCase converts a raw press into an immutable Event carrying
// its resolved config snapshot. It does not deduplicate double-fires; only
// the device layer can know a press is a repeat.
type BuildEventUseCase struct {
	resolver domain.ConfigResolver
	logger   *slog.Logger
}

// NewBuildEventUseCase creates a new BuildEventUseCase.
func NewBuildEventUseCase(resolver domain.ConfigResolver, logger *slog.Logger) *BuildEventUseCase {
	return &BuildEventUseCase{
		resolver: resolver,
		logger:   logger,
	}
}

// Build resolves the button's config and produces the event. Resolution
// failures pass through unchanged so the device can surface an error state;
// a disabled button fails with ErrButtonDisabled and generates no transport
// traffic at all.
func (uc *BuildEventUseCase) Build(ctx context.Context, deviceID string, buttonIndex int, pressType domain.PressType, pressedAt time.Time) (domain.Event, error) {
	cfg, err := uc.resolver.Resolve(ctx, deviceID, buttonIndex)
	if err != nil {
		return domain.Event{}, err
	}

	if !cfg.Enabled {
		return domain.Event{}, fmt.Errorf("%w: device %s button %d", domain.ErrButtonDisabled, deviceID, buttonIndex)
	}

	event := domain.Event{
		ID:          uuid.NewString(),
		DeviceID:    deviceID,
		ButtonIndex: buttonIndex,
		PressType:   pressType,
		PressedAt:   pressedAt,
		Config:      cfg, // copied by value; later config changes never alter this event
		Attempt:     1,
	}

	uc.logger.Debug("built press event", "event_id", event.ID, "device_id", deviceID, "button", buttonIndex)
	return event, nil
}
