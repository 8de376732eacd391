package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/mq"
	"github.com/yeisme/cloudvault/pkg/queue"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	msg, err := queue.NewWatermillMessage(queue.TopicFileStored, queue.FileStoredPayload{
		File:   queue.FileRef{FileID: "f1", Size: 42},
		Source: "server",
	}, queue.WithTraceID("abc"))
	require.NoError(t, err)

	assert.Equal(t, queue.TopicFileStored, msg.Metadata.Get("topic"))
	assert.Equal(t, "abc", msg.Metadata.Get("trace_id"))
	assert.Equal(t, queue.DefaultProducer, msg.Metadata.Get("producer"))

	env, err := queue.ParseWatermillMessage[queue.FileStoredPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "f1", env.Payload.File.FileID)
	assert.Equal(t, int64(42), env.Payload.File.Size)
	assert.Equal(t, queue.PayloadVersionV1, env.Header.Version)
}

func TestTracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b, 0x0c, 1},
		SpanID:     trace.SpanID{0x01, 0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	ps := mq.NewMemoryPubSub(configs.MQMemoryConfig{OutputBuffer: 8}, nil)
	client := mq.NewClient(configs.MQTypeMemory, ps, ps)
	t.Cleanup(func() { _ = client.Close() })

	ch, err := client.Subscribe(ctx, queue.TopicFileStored)
	require.NoError(t, err)

	cfg := configs.EventsConfig{Enabled: true}
	cfg.File.Stored = true
	queue.Emit(ctx, queue.NewPublisher(client, cfg), queue.TopicFileStored, queue.FileStoredPayload{Source: "server"})

	select {
	case m := <-ch:
		assert.NotEmpty(t, m.Metadata.Get("traceparent"))
		assert.Equal(t, sc.TraceID().String(), m.Metadata.Get("trace_id"))
		assert.Equal(t, m.UUID, middleware.MessageCorrelationID(m))

		got := trace.SpanContextFromContext(queue.ContextFrom(m))
		assert.Equal(t, sc.TraceID(), got.TraceID())
		assert.True(t, got.IsRemote())
		m.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEnabled(t *testing.T) {
	cfg := &configs.EventsConfig{Enabled: true}
	cfg.File.Stored = true

	assert.True(t, queue.Enabled(cfg, queue.TopicFileStored))
	assert.False(t, queue.Enabled(cfg, queue.TopicFileMoved))
	assert.False(t, queue.Enabled(cfg, "cv.unknown"))
	assert.False(t, queue.Enabled(nil, queue.TopicFileStored))

	cfg.Enabled = false
	assert.False(t, queue.Enabled(cfg, queue.TopicFileStored))
}

func TestEmit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ps := mq.NewMemoryPubSub(configs.MQMemoryConfig{OutputBuffer: 8}, nil)
	client := mq.NewClient(configs.MQTypeMemory, ps, ps)

	t.Cleanup(func() { _ = client.Close() })

	cfg := configs.EventsConfig{Enabled: true}
	cfg.Share.Granted = true

	ch, err := client.Subscribe(ctx, queue.TopicShareGranted)
	require.NoError(t, err)

	pub := queue.NewPublisher(client, cfg)
	queue.Emit(ctx, pub, queue.TopicShareGranted, queue.SharePayload{ShareID: "s1", Role: "VIEWER"})
	// 关闭的主题不发送
	queue.Emit(ctx, pub, queue.TopicShareRevoked, queue.SharePayload{ShareID: "s2"})

	select {
	case m := <-ch:
		env, err := queue.ParseWatermillMessage[queue.SharePayload](m)
		require.NoError(t, err)
		assert.Equal(t, "s1", env.Payload.ShareID)
		m.Ack()
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}

	// nil Publisher 为空操作
	var nilPub *queue.Publisher
	assert.False(t, nilPub.Enabled(queue.TopicShareGranted))
	queue.Emit(ctx, nilPub, queue.TopicShareGranted, queue.SharePayload{})
}
