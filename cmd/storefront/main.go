package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront/internal/attachments"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/crm"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
	sessionName    = "storefront"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Error("SESSION_SECRET environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	metrics, err := telemetry.NewStoreMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB(ctx, "postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	receipts, err := attachments.New(ctx, cfg.AttachmentsDir, attachments.S3Config{
		Bucket:          cfg.S3Bucket,
		Prefix:          cfg.S3Prefix,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
	})
	if err != nil {
		logger.Error("failed to open attachment store", "error", err)
		os.Exit(1)
	}

	var notifier notify.Notifier
	switch cfg.NotifyMode {
	case config.NotifyQueue:
		if len(cfg.KafkaBrokers) == 0 {
			logger.Error("KAFKA_BROKERS environment variable is required in queue mode")
			os.Exit(1)
		}
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = producer.Close() }()
		notifier = notify.NewQueueNotifier(producer, serviceName, logger)
	default:
		notifier = newBotClient(cfg, db, receipts, metrics, logger)
	}

	products := catalog.NewCachedCatalog(catalog.NewProductCatalog(db), cfg.CacheSize, cfg.CacheTTL)
	promotions := catalog.NewPromotionCatalog(db)
	resolver := catalog.NewResolver(products, catalog.NewCachedCatalog(promotions, cfg.CacheSize, cfg.CacheTTL))

	sessions := cart.NewSessionStore(cart.NewCookieStore([]byte(cfg.SessionSecret), cfg.SessionMaxAge, cfg.CookieSecure), sessionName)
	aggregator := cart.NewAggregator(resolver, metrics, logger)

	catalogHandler := catalog.NewHandler(resolver, promotions, logger)
	cartHandler := cart.NewHandler(sessions, aggregator, resolver, logger)
	orderRepo := orders.NewOrderRepository(db)
	ordersHandler := orders.NewHandler(orderRepo, logger)
	checkoutService := checkout.NewService(aggregator, orderRepo, receipts, notifier, metrics, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, sessions, logger)
	crmHandler := crm.NewHandler(crm.NewCustomerRepository(db), logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /catalog/{kind}/{id}", catalogHandler.HandleGetItem)
	route("GET /promotions", catalogHandler.HandleListPromotions)
	route("GET /promotions/stats", catalogHandler.HandlePromotionStats)

	route("GET /cart", cartHandler.HandleGet)
	route("GET /cart/count", cartHandler.HandleCount)
	route("POST /cart/items", cartHandler.HandleAdd)
	route("PUT /cart/items/{key}", cartHandler.HandleUpdate)
	route("DELETE /cart/items/{key}", cartHandler.HandleRemove)

	route("POST /checkout", checkoutHandler.HandleCheckout)

	route("GET /orders", ordersHandler.HandleList)
	route("GET /orders/{id}", ordersHandler.HandleGet)
	route("PATCH /orders/{id}/status", ordersHandler.HandleUpdateStatus)

	route("GET /customers", crmHandler.HandleList)
	route("POST /customers", crmHandler.HandleCreate)
	route("GET /customers/{id}", crmHandler.HandleGet)
	route("PUT /customers/{id}", crmHandler.HandleUpdate)
	route("POST /customers/{id}/points", crmHandler.HandleAdjustPoints)

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", healthz(db, logger))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(corsHandler.Handler(mux), serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", cfg.Port, "notify_mode", cfg.NotifyMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// newBotClient sends to BOT_CHAT_IDS when set and to the registered staff
// chats otherwise.
func newBotClient(cfg *config.Config, db *sql.DB, files notify.AttachmentOpener, metrics *telemetry.StoreMetrics, logger *slog.Logger) *notify.BotClient {
	var recipients notify.RecipientSource = notify.NewRecipientRepository(db)
	if len(cfg.BotChatIDs) > 0 {
		recipients = notify.StaticRecipients(cfg.BotChatIDs)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return notify.NewBotClient(notify.BotConfig{APIURL: cfg.BotAPIURL, Token: cfg.BotToken}, recipients, files, httpClient, metrics, logger)
}

func healthz(db *sql.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
