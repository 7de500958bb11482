package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration, shared by the device daemon
// and the remote handler worker.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	AdminAddr string `env:"ADMIN_ADDR" envDefault:":9091"`

	// Device identity and input.
	DeviceID     string        `env:"DEVICE_ID"`
	ButtonPins   []int         `env:"BUTTON_PINS" envDefault:"17,27,22"`
	PollInterval time.Duration `env:"BUTTON_POLL_INTERVAL" envDefault:"10ms"`
	LongPress    time.Duration `env:"LONG_PRESS_THRESHOLD" envDefault:"1s"`
	// DefaultPressInterval gates repeat presses when the sheet row carries
	// no rate limit of its own.
	DefaultPressInterval time.Duration `env:"DEFAULT_PRESS_INTERVAL" envDefault:"60s"`

	// Config source (Google Sheets).
	SheetsBaseURL  string        `env:"SHEETS_BASE_URL" envDefault:"https://sheets.googleapis.com"`
	SheetsAPIKey   string        `env:"SHEETS_API_KEY,required"`
	SpreadsheetID  string        `env:"SPREADSHEET_ID,required"`
	ConfigTab      string        `env:"CONFIG_TAB" envDefault:"Config"`
	ConfigCacheTTL time.Duration `env:"CONFIG_CACHE_TTL" envDefault:"1h"`

	// Chat messaging (Slack).
	SlackBaseURL  string `env:"SLACK_BASE_URL" envDefault:"https://slack.com"`
	SlackBotToken string `env:"SLACK_BOT_TOKEN"`

	// Transport.
	RedisAddr         string        `env:"REDIS_ADDR,required"`
	EventStream       string        `env:"EVENT_STREAM" envDefault:"button_events"`
	DLQStream         string        `env:"DLQ_STREAM" envDefault:"button_events_dlq"`
	ConsumerGroup     string        `env:"CONSUMER_GROUP" envDefault:"press-handlers"`
	VisibilityTimeout time.Duration `env:"VISIBILITY_TIMEOUT" envDefault:"30s"`

	// Dispatch policy.
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`
	RequeueBackoff      time.Duration `env:"REQUEUE_BACKOFF" envDefault:"5s"`
	SinkAttempts        int           `env:"SINK_ATTEMPTS" envDefault:"3"`
	SinkBackoff         time.Duration `env:"SINK_BACKOFF" envDefault:"500ms"`
	SinkTimeout         time.Duration `env:"SINK_TIMEOUT" envDefault:"10s"`
	AckPolicy           string        `env:"ACK_POLICY" envDefault:"message"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
