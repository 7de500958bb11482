package domain

import (
	"strings"
	"testing"
	"time"
)

func TestEvent_Message(t *testing.T) {
	pressedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	t.Run("Template Substitution", func(t *testing.T) {
		event := Event{
			DeviceID:    "3",
			ButtonIndex: 1,
			PressType:   PressSingle,
			PressedAt:   pressedAt,
			Config:      ButtonConfig{Template: "Help requested at {device}:{button}"},
		}

		if got := event.Message(); got != "Help requested at 3:1" {
			t.Errorf("unexpected message: %q", got)
		}
	})

	t.Run("Time Placeholder", func(t *testing.T) {
		event := Event{
			DeviceID:  "3",
			PressType: PressSingle,
			PressedAt: pressedAt,
			Config:    ButtonConfig{Template: "Pressed at {time}"},
		}

		if got := event.Message(); got != "Pressed at March 14, 2026 09:30:00 AM" {
			t.Errorf("unexpected message: %q", got)
		}
	})

	t.Run("Empty Template Falls Back", func(t *testing.T) {
		event := Event{DeviceID: "3", PressType: PressSingle, PressedAt: pressedAt}

		if got := event.Message(); got != "Unknown button pressed." {
			t.Errorf("unexpected message: %q", got)
		}
	})

	t.Run("Long Press Renders Test Message", func(t *testing.T) {
		event := Event{
			DeviceID:    "3",
			ButtonIndex: 1,
			PressType:   PressLong,
			PressedAt:   pressedAt,
			Config:      ButtonConfig{Template: "Help requested at {device}:{button}"},
		}

		got := event.Message()
		if !strings.HasPrefix(got, "Testing button 1 at device 3") {
			t.Errorf("expected a test message for a long press, got %q", got)
		}
		if strings.Contains(got, "Help requested") {
			t.Error("expected the configured template to be bypassed for a long press")
		}
	})
}
