package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"citabot/internal/audit"
	"citabot/internal/availability"
	"citabot/internal/booking"
	"citabot/internal/bot"
	"citabot/internal/config"
	"citabot/internal/database"
	"citabot/internal/events"
	"citabot/internal/flow"
	"citabot/internal/intent"
	"citabot/internal/metrics"
	"citabot/internal/models"
	"citabot/internal/session"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CITABOT_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	// Session state lives in Redis when configured, with an in-memory
	// fallback; bookings never depend on it, so memory-only is fine for
	// single-instance deployments.
	memStore := session.NewMemoryStore(&logger)
	var sessions session.Store = memStore
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sessions = session.NewFailoverStore(session.NewRedisStore(rdb, &logger), memStore, &logger)
	}

	var backup *database.BackupService
	if cfg.Backup.Enabled {
		backup = database.NewBackupService(db, cfg.Backup.StoragePath,
			cfg.BackupInterval(), cfg.Backup.RetentionDays, &logger)
	}

	bus := events.NewBus()

	classifier := intent.NewClassifier(&logger)
	engine := availability.NewEngine(cfg.Availability.GranularityMinutes, &logger)
	committer := booking.NewEngine(db, bus, &logger)
	exporter := audit.NewExporter(db, &logger)

	handler := flow.NewHandler(db, sessions, classifier, engine, committer, flow.Options{
		ConfidenceThreshold: cfg.Intent.ConfidenceThreshold,
		SessionTTL:          cfg.SessionTTL(),
		SearchDays:          cfg.Availability.SearchDays,
		MinAdvance:          cfg.BookingMinAdvance(),
		MaxAdvance:          cfg.BookingMaxAdvance(),
	}, &logger)

	b, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, handler, exporter, cfg.Facility.ID, cfg.Managers, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus.Subscribe(events.TypeBookingCreated, func(ev events.Event) error {
		var bk models.Booking
		if err := json.Unmarshal(ev.Payload, &bk); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}
		logger.Info().Str("code", bk.BookingCode).Int64("staff_id", bk.StaffID).Msg("booking created")
		b.NotifyManagers(ctx, fmt.Sprintf("New booking %s: staff %d, %s",
			bk.BookingCode, bk.StaffID, bk.StartTs.Format("2006-01-02 15:04")))
		return nil
	})

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if backup != nil {
		go backup.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Int64("facility_id", cfg.Facility.ID).Msg("booking bot started")
	b.Start(ctx)
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
