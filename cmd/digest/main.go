package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/crm"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/scheduler"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	serviceName    = "digest"
	serviceVersion = "0.1.0"
)

func main() {
	once := flag.Bool("once", false, "send today's digest immediately and exit")
	flag.Parse()

	os.Exit(run(*once))
}

// run returns the process exit code so deferred cleanup runs before exit.
func run(once bool) int {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		return 1
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		return 1
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		return 1
	}
	defer func() { _ = shutdownMeter(ctx) }()

	metrics, err := telemetry.NewStoreMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		return 1
	}

	db, err := telemetry.OpenDB(ctx, "postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	var recipients notify.RecipientSource = notify.NewRecipientRepository(db)
	if len(cfg.BotChatIDs) > 0 {
		recipients = notify.StaticRecipients(cfg.BotChatIDs)
	}
	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	bot := notify.NewBotClient(notify.BotConfig{APIURL: cfg.BotAPIURL, Token: cfg.BotToken}, recipients, nil, httpClient, metrics, logger)

	job := crm.NewDigestJob(crm.NewCustomerRepository(db), bot, cfg.Timezone, metrics, logger)

	if once {
		if err := job.Run(ctx); err != nil {
			logger.Error("digest failed", "error", err)
			return 1
		}
		return 0
	}

	sched := scheduler.New(cfg.Timezone, logger)
	if err := sched.AddDaily(cfg.DigestHour, cfg.DigestMinute, "birthday-digest", job.Run); err != nil {
		logger.Error("failed to schedule digest", "error", err)
		return 1
	}

	metricsServer := telemetry.NewMetricsServer(cfg.MetricsPort, metricsHandler)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting digest scheduler", "hour", cfg.DigestHour, "minute", cfg.DigestMinute, "timezone", cfg.Timezone.String(), "metrics_port", cfg.MetricsPort)
	sched.Run(runCtx)
	logger.Info("digest scheduler stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	return 0
}
