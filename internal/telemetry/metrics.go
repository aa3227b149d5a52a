package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider installs a Prometheus-backed global MeterProvider and starts
// Go runtime metrics. It returns the /metrics handler and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// NewMetricsServer exposes h on GET /metrics for the worker binaries, which
// have no API server of their own.
func NewMetricsServer(port string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", h)
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StoreMetrics holds the storefront's business instruments.
type StoreMetrics struct {
	CartEntriesSkipped  metric.Int64Counter
	OrdersPlaced        metric.Int64Counter
	OrderValue          metric.Float64Histogram
	NotificationsSent   metric.Int64Counter
	NotificationsFailed metric.Int64Counter
	DigestRuns          metric.Int64Counter
}

func NewStoreMetrics(meter metric.Meter) (*StoreMetrics, error) {
	var (
		m   StoreMetrics
		err error
	)

	if m.CartEntriesSkipped, err = meter.Int64Counter("storefront.cart.entries_skipped",
		metric.WithDescription("Cart entries dropped during aggregation because they did not resolve")); err != nil {
		return nil, err
	}
	if m.OrdersPlaced, err = meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders persisted at checkout")); err != nil {
		return nil, err
	}
	if m.OrderValue, err = meter.Float64Histogram("storefront.orders.value",
		metric.WithDescription("Grand total of placed orders")); err != nil {
		return nil, err
	}
	if m.NotificationsSent, err = meter.Int64Counter("storefront.notifications.sent",
		metric.WithDescription("Staff notifications handed to the channel")); err != nil {
		return nil, err
	}
	if m.NotificationsFailed, err = meter.Int64Counter("storefront.notifications.failed",
		metric.WithDescription("Staff notifications that could not be delivered")); err != nil {
		return nil, err
	}
	if m.DigestRuns, err = meter.Int64Counter("storefront.digest.runs",
		metric.WithDescription("Daily digest executions")); err != nil {
		return nil, err
	}

	return &m, nil
}
