package device

import "log/slog"

// Display shows per-button delivery status to the operator. The device
// distinguishes "press rejected immediately" from "press accepted, outcome
// pending or failed later"; both arrive here.
type Display interface {
	ShowStatus(buttonIndex int, ok bool)
}

// LogDisplay is a Display that writes status transitions to the log. It
// stands in for hardware feedback (LED, screen) on headless deployments.
type LogDisplay struct {
	Logger *slog.Logger
}

func (d *LogDisplay) ShowStatus(buttonIndex int, ok bool) {
	if ok {
		d.Logger.Info("button status", "button", buttonIndex, "status", "ok")
		return
	}
	d.Logger.Warn("button status", "button", buttonIndex, "status", "error")
}
