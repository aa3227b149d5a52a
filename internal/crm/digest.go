package crm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

var tracer = otel.Tracer("storefront/crm")

type BirthdayFinder interface {
	BirthdaysOn(ctx context.Context, month time.Month, day int) ([]domain.BirthdayMatch, error)
}

// DigestJob sends the daily birthday digest. Each run sends at most one message
// and never retries.
type DigestJob struct {
	finder   BirthdayFinder
	notifier notify.Notifier
	location *time.Location
	metrics  *telemetry.StoreMetrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewDigestJob(finder BirthdayFinder, notifier notify.Notifier, location *time.Location, metrics *telemetry.StoreMetrics, logger *slog.Logger) *DigestJob {
	if location == nil {
		location = time.UTC
	}
	return &DigestJob{
		finder:   finder,
		notifier: notifier,
		location: location,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run selects today's matches in the job's timezone and sends the digest. The
// returned error is informational; the caller only logs it.
func (j *DigestJob) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "digest.run")
	defer span.End()

	today := j.now().In(j.location)
	span.SetAttributes(attribute.String("digest.date", today.Format(time.DateOnly)))

	matches, err := j.finder.BirthdaysOn(ctx, today.Month(), today.Day())
	if err != nil {
		j.record(ctx, "query_failed")
		j.logger.Error("failed to select digest birthdays", "error", err)
		return fmt.Errorf("select birthdays: %w", err)
	}

	text := notify.FormatDigest(today, matches)
	if err := j.notifier.Notify(ctx, notify.Message{Text: text}); err != nil {
		j.record(ctx, "notify_failed")
		j.logger.Error("failed to send daily digest", "error", err, "matches", len(matches))
		return fmt.Errorf("send digest: %w", err)
	}

	j.record(ctx, "sent")
	j.logger.Info("daily digest sent", "date", today.Format(time.DateOnly), "matches", len(matches))
	return nil
}

func (j *DigestJob) record(ctx context.Context, result string) {
	j.metrics.DigestRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
