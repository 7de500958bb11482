package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/button-relay/internal/adapter/metrics"
	redisrepo "github.com/user/button-relay/internal/adapter/repository/redis"
	"github.com/user/button-relay/internal/adapter/sink"
	"github.com/user/button-relay/internal/pkg/config"
	"github.com/user/button-relay/internal/pkg/logger"
	"github.com/user/button-relay/internal/usecase"
)

const (
	processingInterval = 1 * time.Second
	batchSize          = 16
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.SlackBotToken == "" {
		slog.Error("SLACK_BOT_TOKEN must be set for the handler worker")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting handler worker")

	m := metrics.NewHandlerMetrics()

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
	log.Info("connected to redis")

	// Unique consumer name per instance for the consumer group.
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "handler-default"
	}

	queue, err := redisrepo.NewEventQueue(redisClient, log, cfg.EventStream, cfg.DLQStream, cfg.ConsumerGroup, consumerName, cfg.VisibilityTimeout)
	if err != nil {
		log.Error("failed to initialize event queue", "error", err)
		os.Exit(1)
	}

	// --- Sinks and status channel ---
	messageSink := sink.NewSlackSink(nil, cfg.SlackBaseURL, cfg.SlackBotToken, log)
	logSink := sink.NewSheetsSink(nil, cfg.SheetsBaseURL, cfg.SpreadsheetID, cfg.SheetsAPIKey, log)
	statusChannel := redisrepo.NewStatusChannel(redisClient, log)

	policy := usecase.DispatchPolicy{
		SinkAttempts:        cfg.SinkAttempts,
		SinkBackoff:         cfg.SinkBackoff,
		SinkTimeout:         cfg.SinkTimeout,
		MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
		RequeueBackoff:      cfg.RequeueBackoff,
		AckPolicy:           usecase.AckPolicy(cfg.AckPolicy),
	}

	dispatch := usecase.NewDispatchEventUseCase(queue, messageSink, logSink, statusChannel, log, clockwork.NewRealClock(), policy, m)

	// --- Processing loop ---
	ticker := time.NewTicker(processingInterval)
	defer ticker.Stop()

	log.Info("handler worker started, processing events...", "group", cfg.ConsumerGroup, "consumer", consumerName)

Loop:
	for {
		select {
		case <-ticker.C:
			if _, err := dispatch.ProcessBatch(ctx, batchSize); err != nil {
				log.Error("error processing batch", "error", err)
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down handler loop")
			break Loop
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
	log.Info("handler worker shut down gracefully")
}
