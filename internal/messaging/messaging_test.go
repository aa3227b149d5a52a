package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type queueReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *queueReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *queueReader) Close() error { return nil }

type pingEvent struct {
	Text string `json:"text"`
}

func (pingEvent) EventType() string { return "ping" }

func withPropagator(t *testing.T) {
	t.Helper()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{}
	c := NewHeaderCarrier(&msg)

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set(HeaderEventType, "ping")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", HeaderEventType}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestProducer_Publish(t *testing.T) {
	withPropagator(t)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "notifications"}

	require.NoError(t, p.Publish(ctx, "k1", pingEvent{Text: "hi"}))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "k1", string(msg.Key))

	var decoded pingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "hi", decoded.Text)

	carrier := NewHeaderCarrier(&msg)
	assert.Equal(t, "ping", carrier.Get(HeaderEventType))
	assert.NotEmpty(t, carrier.Get("traceparent"))
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("broker down")}, topic: "notifications"}

	err := p.Publish(context.Background(), "k", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestConsumer_Consume(t *testing.T) {
	withPropagator(t)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "producer")
	parent := span.SpanContext()
	span.End()

	w := &recordingWriter{}
	require.NoError(t, (&Producer{writer: w, topic: "notifications"}).Publish(ctx, "k1", pingEvent{Text: "one"}))
	w.msgs = append(w.msgs, kafka.Message{Key: []byte("k2"), Value: []byte(`{}`)})

	reader := &queueReader{msgs: w.msgs}
	c := &Consumer{reader: reader, topic: "notifications", groupID: "g"}

	var got []Delivery
	err := c.Consume(context.Background(), func(ctx context.Context, d Delivery) error {
		if d.Key == "k1" {
			assert.Equal(t, parent.TraceID(), trace.SpanContextFromContext(ctx).TraceID())
		}
		got = append(got, d)
		return nil
	})

	require.ErrorIs(t, err, io.EOF)
	require.Len(t, got, 2)
	assert.Equal(t, "ping", got[0].EventType)
	assert.Equal(t, "", got[1].EventType)
	assert.Len(t, reader.committed, 2)
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	reader := &queueReader{msgs: []kafka.Message{{Key: []byte("k"), Value: []byte(`{}`)}}}
	c := &Consumer{reader: reader, topic: "notifications", groupID: "g"}

	boom := errors.New("boom")
	err := c.Consume(context.Background(), func(context.Context, Delivery) error { return boom })

	require.ErrorIs(t, err, boom)
	assert.Empty(t, reader.committed)
}
