package configsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/button-relay/internal/domain"
)

// Column layout of the config tab, starting at row 2 (row 1 is headers):
// A device id, B button index, C channel, D message template, E log tab,
// F enabled flag, G optional rate limit in seconds.
const configRange = "A2:G"

// SheetsSource fetches the full button configuration table from a Google
// Sheets tab using the values API.
type SheetsSource struct {
	client           *http.Client
	baseURL          string
	spreadsheetID    string
	apiKey           string
	configTab        string
	defaultRateLimit time.Duration
	logger           *slog.Logger
}

// NewSheetsSource creates a config source reading the given spreadsheet tab.
func NewSheetsSource(client *http.Client, baseURL, spreadsheetID, apiKey, configTab string, defaultRateLimit time.Duration, logger *slog.Logger) *SheetsSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &SheetsSource{
		client:           client,
		baseURL:          strings.TrimRight(baseURL, "/"),
		spreadsheetID:    spreadsheetID,
		apiKey:           apiKey,
		configTab:        configTab,
		defaultRateLimit: defaultRateLimit,
		logger:           logger.With("component", "sheets_source"),
	}
}

// FetchAll retrieves the whole config table. Malformed rows are logged and
// skipped so one bad sheet edit cannot take every button offline. When the
// same device/button key appears twice the later row wins, matching how
// sheet edits tend to append rather than update.
func (s *SheetsSource) FetchAll(ctx context.Context) ([]domain.ButtonConfig, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?key=%s",
		s.baseURL,
		url.PathEscape(s.spreadsheetID),
		url.PathEscape(s.configTab+"!"+configRange),
		url.QueryEscape(s.apiKey),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sheets request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sheets API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode sheets response: %w", err)
	}

	rows := make([]domain.ButtonConfig, 0, len(payload.Values))
	for i, raw := range payload.Values {
		row, err := s.parseRow(raw)
		if err != nil {
			// Sheet rows are 1-indexed and the range starts at row 2.
			s.logger.Warn("skipping malformed config row", "row", i+2, "error", err)
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (s *SheetsSource) parseRow(raw []string) (domain.ButtonConfig, error) {
	if len(raw) < 6 {
		return domain.ButtonConfig{}, fmt.Errorf("expected at least 6 columns, got %d", len(raw))
	}

	deviceID := strings.TrimSpace(raw[0])
	if deviceID == "" {
		return domain.ButtonConfig{}, fmt.Errorf("empty device id")
	}

	buttonIndex, err := strconv.Atoi(strings.TrimSpace(raw[1]))
	if err != nil {
		return domain.ButtonConfig{}, fmt.Errorf("invalid button index %q", raw[1])
	}

	channel := strings.TrimSpace(raw[2])
	if channel == "" {
		return domain.ButtonConfig{}, fmt.Errorf("empty channel")
	}

	enabled, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw[5])))
	if err != nil {
		return domain.ButtonConfig{}, fmt.Errorf("invalid enabled flag %q", raw[5])
	}

	rateLimit := s.defaultRateLimit
	if len(raw) > 6 && strings.TrimSpace(raw[6]) != "" {
		seconds, err := strconv.Atoi(strings.TrimSpace(raw[6]))
		if err != nil || seconds < 0 {
			return domain.ButtonConfig{}, fmt.Errorf("invalid rate limit %q", raw[6])
		}
		rateLimit = time.Duration(seconds) * time.Second
	}

	return domain.ButtonConfig{
		DeviceID:    deviceID,
		ButtonIndex: buttonIndex,
		Channel:     channel,
		Template:    strings.TrimSpace(raw[3]),
		Tab:         strings.TrimSpace(raw[4]),
		Enabled:     enabled,
		RateLimit:   rateLimit,
	}, nil
}
