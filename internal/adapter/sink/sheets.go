package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/user/button-relay/internal/domain"
)

// rowOutcomeOK is the outcome column written for a delivered row. The row
// is only ever appended by a delivery attempt, so it records the event as
// logged; dead-lettered events never reach this sink.
const rowOutcomeOK = "OK"

// SheetsSink appends a log row to the spreadsheet tab named in the event's
// config. The event id is the last column, so a human can spot rows
// duplicated by at-least-once redelivery.
type SheetsSink struct {
	client        *http.Client
	baseURL       string
	spreadsheetID string
	apiKey        string
	logger        *slog.Logger
}

// NewSheetsSink creates a log sink appending to the given spreadsheet.
func NewSheetsSink(client *http.Client, baseURL, spreadsheetID, apiKey string, logger *slog.Logger) *SheetsSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &SheetsSink{
		client:        client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
		apiKey:        apiKey,
		logger:        logger.With("component", "sheets_sink"),
	}
}

// Deliver appends the row (timestamp, device, button, message, outcome,
// event id) to the configured tab.
func (s *SheetsSink) Deliver(ctx context.Context, event domain.Event) error {
	tab := event.Config.Tab
	if tab == "" {
		return fmt.Errorf("event %s has no log tab configured", event.ID)
	}

	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&key=%s",
		s.baseURL,
		url.PathEscape(s.spreadsheetID),
		url.PathEscape(tab+"!A1"),
		url.QueryEscape(s.apiKey),
	)

	row := []interface{}{
		event.Timestamp(),
		event.DeviceID,
		event.ButtonIndex,
		event.Message(),
		rowOutcomeOK,
		event.ID,
	}
	body, err := json.Marshal(map[string]interface{}{
		"values": [][]interface{}{row},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sheets row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sheets request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to append to sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheets API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	s.logger.Debug("appended log row", "event_id", event.ID, "tab", tab)
	return nil
}
