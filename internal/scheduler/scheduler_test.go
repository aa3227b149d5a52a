package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(loc *time.Location) (*Scheduler, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(loc, slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestAddDaily_RejectsOutOfRange(t *testing.T) {
	s, _ := newTestScheduler(nil)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.AddDaily(24, 0, "digest", noop))
	assert.Error(t, s.AddDaily(-1, 0, "digest", noop))
	assert.Error(t, s.AddDaily(9, 60, "digest", noop))
	assert.Empty(t, s.cron.Entries())
}

func TestAddDaily_NextRunInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+6", 6*3600)
	s, _ := newTestScheduler(loc)

	require.NoError(t, s.AddDaily(9, 30, "digest", func(context.Context) error { return nil }))

	entries := s.cron.Entries()
	require.Len(t, entries, 1)

	from := time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC) // 09:00 local
	next := entries[0].Schedule.Next(from.In(loc))
	assert.Equal(t, time.Date(2026, 10, 14, 3, 30, 0, 0, time.UTC), next.UTC())

	from = time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC) // 10:00 local
	next = entries[0].Schedule.Next(from.In(loc))
	assert.Equal(t, time.Date(2026, 10, 15, 3, 30, 0, 0, time.UTC), next.UTC())
}

func TestJobFailureAndPanicAreLogged(t *testing.T) {
	s, buf := newTestScheduler(nil)

	require.NoError(t, s.AddDaily(8, 0, "failing", func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, s.AddDaily(8, 0, "panicking", func(context.Context) error { panic("kaboom") }))

	for _, e := range s.cron.Entries() {
		assert.NotPanics(t, e.WrappedJob.Run)
	}

	out := buf.String()
	assert.Contains(t, out, "job failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "panic")
}

func TestRunStopsWithContext(t *testing.T) {
	s, _ := newTestScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Error(t, s.ctx.Err())
}
