package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/button-relay/internal/adapter/configsource"
	"github.com/user/button-relay/internal/adapter/metrics"
	redisrepo "github.com/user/button-relay/internal/adapter/repository/redis"
	"github.com/user/button-relay/internal/device"
	"github.com/user/button-relay/internal/device/button"
	"github.com/user/button-relay/internal/domain"
	"github.com/user/button-relay/internal/pkg/config"
	"github.com/user/button-relay/internal/pkg/logger"
	"github.com/user/button-relay/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.DeviceID == "" {
		slog.Error("DEVICE_ID must be set for the device daemon")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.NewDeviceMetrics()
	clock := clockwork.NewRealClock()

	// --- Admin and metrics server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminMux}
	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful shutdown context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Redis connection ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	queue, err := redisrepo.NewEventQueue(redisClient, log, cfg.EventStream, cfg.DLQStream, cfg.ConsumerGroup, "", cfg.VisibilityTimeout)
	if err != nil {
		log.Error("failed to initialize event queue", "error", err)
		os.Exit(1)
	}

	// --- Config resolution and event building ---
	source := configsource.NewSheetsSource(nil, cfg.SheetsBaseURL, cfg.SpreadsheetID, cfg.SheetsAPIKey, cfg.ConfigTab, cfg.DefaultPressInterval, log)
	resolver := configsource.NewResolver(source, cfg.ConfigCacheTTL, clock, log, m)
	builder := usecase.NewBuildEventUseCase(resolver, log)

	display := &device.LogDisplay{Logger: log}

	// --- Status return channel ---
	statusChannel := redisrepo.NewStatusChannel(redisClient, log)
	go func() {
		err := statusChannel.Subscribe(ctx, cfg.DeviceID, func(report domain.StatusReport) {
			display.ShowStatus(report.ButtonIndex, report.OK())
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("status subscription ended", "error", err)
		}
	}()

	// --- Button input ---
	reader, err := button.NewRealReader(cfg.ButtonPins)
	if err != nil {
		log.Error("failed to open button input", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	// Per-button config rate limits, enforced after resolution so the sheet
	// row's own limit applies.
	var (
		lastSentMu sync.Mutex
		lastSent   = make(map[int]time.Time)
	)

	onPress := func(p device.Press) {
		pressCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		event, err := builder.Build(pressCtx, cfg.DeviceID, p.ButtonIndex, p.Type, p.Time)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrButtonDisabled):
				log.Warn("press on disabled button", "button", p.ButtonIndex)
				m.PressesTotal.WithLabelValues("disabled").Inc()
			default:
				log.Error("failed to build press event", "button", p.ButtonIndex, "error", err)
				m.PressesTotal.WithLabelValues("rejected").Inc()
			}
			display.ShowStatus(p.ButtonIndex, false)
			return
		}

		lastSentMu.Lock()
		if last, ok := lastSent[p.ButtonIndex]; ok && p.Time.Sub(last) < event.Config.RateLimit {
			lastSentMu.Unlock()
			log.Warn("press inside configured rate limit, not sent", "button", p.ButtonIndex)
			m.PressesTotal.WithLabelValues("rate_limited").Inc()
			return
		}
		lastSent[p.ButtonIndex] = p.Time
		lastSentMu.Unlock()

		if err := queue.Enqueue(pressCtx, event); err != nil {
			// No durable record exists; the press is lost and the operator
			// must know now.
			log.Error("failed to submit press event", "event_id", event.ID, "error", err)
			m.PressesTotal.WithLabelValues("submit_error").Inc()
			display.ShowStatus(p.ButtonIndex, false)
			return
		}

		m.PressesTotal.WithLabelValues("accepted").Inc()
		log.Info("press accepted", "event_id", event.ID, "button", p.ButtonIndex, "press_type", string(p.Type))
	}

	capture := device.NewCapture(reader, len(cfg.ButtonPins), cfg.PollInterval, cfg.LongPress, cfg.DefaultPressInterval, clock, log, onPress)

	log.Info("button daemon started", "device_id", cfg.DeviceID, "buttons", len(cfg.ButtonPins))
	if err := capture.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("capture loop failed", "error", err)
	}

	log.Info("shutting down...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
	log.Info("button daemon shut down gracefully")
}
