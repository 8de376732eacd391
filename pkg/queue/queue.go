// Package queue 定义领域事件：主题、负载与统一信封 {header, payload}，经 storage/mq 发布.
//
// 事件在数据库提交之后发布，发布失败只记录日志与指标，不回滚业务.
// 追踪上下文以 W3C traceparent 写入消息元数据，消费者用 ContextFrom 还原.
//
//	ch, _ := client.Subscribe(ctx, queue.TopicFileStored)
//	for m := range ch {
//		env, _ := queue.ParseWatermillMessage[queue.FileStoredPayload](m)
//		ctx := queue.ContextFrom(m)
//		m.Ack()
//	}
package queue

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	PayloadVersionV1 = "v1"
	DefaultProducer  = "cloudvault"
)

// HeaderOption 调整事件头.
type HeaderOption func(*EventHeader)

// WithTraceID 覆盖 trace_id，默认取自 context 中的 span.
func WithTraceID(id string) HeaderOption {
	return func(h *EventHeader) { h.TraceID = id }
}

// WithOccurredAt 覆盖事件时间，默认当前 UTC 时间.
func WithOccurredAt(t time.Time) HeaderOption {
	return func(h *EventHeader) { h.OccurredAt = t.UTC() }
}

// NewWatermillMessage 编码信封并设置元数据，不带追踪上下文.
func NewWatermillMessage[T any](topic string, payload T, opts ...HeaderOption) (*message.Message, error) {
	return newMessage(context.Background(), topic, payload, opts...)
}

func newMessage[T any](ctx context.Context, topic string, payload T, opts ...HeaderOption) (*message.Message, error) {
	env := Message[T]{
		Header: EventHeader{
			Topic:      topic,
			TraceID:    traceIDFrom(ctx),
			Producer:   DefaultProducer,
			OccurredAt: time.Now().UTC(),
			Version:    PayloadVersionV1,
		},
		Payload: payload,
	}
	for _, opt := range opts {
		opt(&env.Header)
	}

	data, err := sonic.Marshal(env)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewULID(), data)
	msg.Metadata.Set("topic", topic)
	msg.Metadata.Set("producer", env.Header.Producer)
	msg.Metadata.Set("version", env.Header.Version)
	msg.Metadata.Set("occurred_at", env.Header.OccurredAt.Format(time.RFC3339Nano))

	if env.Header.TraceID != "" {
		msg.Metadata.Set("trace_id", env.Header.TraceID)
	}

	middleware.SetCorrelationID(msg.UUID, msg)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))

	return msg, nil
}

// ParseWatermillMessage 解出信封与泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	var m Message[T]
	err := sonic.Unmarshal(msg.Payload, &m)

	return m, err
}

// ContextFrom 以消息自身的 context 为基础还原发布方的追踪上下文.
func ContextFrom(msg *message.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))
}
