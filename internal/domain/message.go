package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// timestampLayout is the human-facing time format used in messages and log
// rows, e.g. "January 02, 2006 03:04:05 PM".
const timestampLayout = "January 02, 2006 03:04:05 PM"

const defaultMessage = "Unknown button pressed."

// Message renders the notification text for the event from its config
// template. The template may reference {device}, {button} and {time}.
// A long press renders a test message instead, so operators can verify a
// button without paging anyone.
func (e Event) Message() string {
	if e.PressType == PressLong {
		return fmt.Sprintf("Testing button %d at device %s\nTimestamp: %s",
			e.ButtonIndex, e.DeviceID, e.PressedAt.Format(timestampLayout))
	}

	tmpl := e.Config.Template
	if tmpl == "" {
		tmpl = defaultMessage
	}

	return strings.NewReplacer(
		"{device}", e.DeviceID,
		"{button}", strconv.Itoa(e.ButtonIndex),
		"{time}", e.PressedAt.Format(timestampLayout),
	).Replace(tmpl)
}

// Timestamp returns the press capture time formatted for the log row.
func (e Event) Timestamp() string {
	return e.PressedAt.Format(timestampLayout)
}
