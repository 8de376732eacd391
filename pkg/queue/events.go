package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/cloudvault/pkg/configs"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	nlog "github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/metrics"
)

// Sink 消息发送端，*mq.Client 满足该接口.
type Sink interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// Publisher 按配置过滤主题后发布，nil Publisher 与 nil Sink 均为空操作.
type Publisher struct {
	sink Sink
	cfg  configs.EventsConfig
}

func NewPublisher(sink Sink, cfg configs.EventsConfig) *Publisher {
	return &Publisher{sink: sink, cfg: cfg}
}

// Enabled 主题是否会被发布.
func (p *Publisher) Enabled(topic string) bool {
	return p != nil && p.sink != nil && Enabled(&p.cfg, topic)
}

// Emit 发布事件，失败只记录日志.
func Emit[T any](ctx context.Context, p *Publisher, topic string, payload T) {
	if !p.Enabled(topic) {
		return
	}

	l := ctxPkg.WithTraceContext(ctx, *nlog.Logger())

	msg, err := newMessage(ctx, topic, payload)
	if err != nil {
		l.Error().Err(err).Str("topic", topic).Msg("encode event failed")
		return
	}

	if err := p.sink.Publish(ctx, topic, msg); err != nil {
		metrics.EventPublishFailures.WithLabelValues(topic).Inc()
		l.Warn().Err(err).Str("topic", topic).Msg("publish event failed")

		return
	}

	metrics.EventsPublished.WithLabelValues(topic).Inc()
}

func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}

	return sc.TraceID().String()
}
