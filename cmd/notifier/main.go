package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront/internal/attachments"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	serviceName    = "notifier"
	serviceVersion = "0.1.0"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		return 1
	}
	if cfg.BotToken == "" {
		logger.Error("BOT_TOKEN environment variable is required")
		return 1
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		return 1
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		return 1
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	metrics, err := telemetry.NewStoreMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		return 1
	}

	var recipients notify.RecipientSource = notify.StaticRecipients(cfg.BotChatIDs)
	if len(cfg.BotChatIDs) == 0 {
		if cfg.PostgresURL == "" {
			logger.Error("BOT_CHAT_IDS or POSTGRES_URL is required")
			return 1
		}
		db, err := telemetry.OpenDB(ctx, "postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer func() { _ = db.Close() }()
		recipients = notify.NewRecipientRepository(db)
	}

	files, err := attachments.New(ctx, cfg.AttachmentsDir, attachments.S3Config{
		Bucket:          cfg.S3Bucket,
		Prefix:          cfg.S3Prefix,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
	})
	if err != nil {
		logger.Error("failed to open attachment store", "error", err)
		return 1
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	bot := notify.NewBotClient(notify.BotConfig{APIURL: cfg.BotAPIURL, Token: cfg.BotToken}, recipients, files, httpClient, metrics, logger)
	worker := notify.NewWorker(bot, logger)

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup)
	defer func() { _ = consumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	metricsServer := telemetry.NewMetricsServer(cfg.MetricsPort, metricsHandler)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic, "metrics_port", cfg.MetricsPort)

	if err := consumer.Consume(ctx, worker.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("consumer stopped")
			return 0
		}
		logger.Error("consumer error", "error", err)
		return 1
	}
	return 0
}
