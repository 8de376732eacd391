// Package mq 把 Watermill 的 Publisher/Subscriber 封装为按配置选择后端的 Client.
//
// 后端由各文件的 init 注册：nats（可选 JetStream）、redis、memory（gochannel）.
// 领域事件的编码见 pkg/queue.
package mq

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/cloudvault/pkg/configs"
	nlog "github.com/yeisme/cloudvault/pkg/log"
	appmetrics "github.com/yeisme/cloudvault/pkg/metrics"
)

// Factory 按配置创建一对 Publisher/Subscriber.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册后端，重复注册以后者为准.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 已注册后端，按名称排序.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

var errNotInitialized = errors.New("mq client not initialized")

type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	kind       configs.MQType
}

func NewClient(kind configs.MQType, pub message.Publisher, sub message.Subscriber) *Client {
	return &Client{publisher: pub, subscriber: sub, kind: kind}
}

func (c *Client) Type() configs.MQType {
	return c.kind
}

// Publish 发布到 topic；ctx 仅用于签名统一，追踪信息由消息元数据携带.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("publish %s: %w", topic, errNotInitialized)
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 订阅 topic，ctx 取消后通道关闭.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, errNotInitialized)
	}

	return c.subscriber.Subscribe(ctx, topic)
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	// gochannel 的 Publisher 与 Subscriber 是同一个实例
	if c.subscriber != nil && any(c.subscriber) != any(c.publisher) {
		errs = append(errs, c.subscriber.Close())
	}

	return errors.Join(errs...)
}

// Open 按配置创建客户端；withMetrics 时把收发指标注册到 reg.
func Open(ctx context.Context, cfg configs.MQConfig, reg prometheus.Registerer) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type %q (registered: %v)", cfg.Type, GetRegisteredMQTypes())
	}

	pub, sub, err := factory(ctx, &cfg, newWatermillLogger(*nlog.Logger(), string(cfg.Type)))
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	if reg != nil {
		if pub, sub, err = instrument(reg, pub, sub); err != nil {
			return nil, err
		}
	}

	return NewClient(cfg.Type, pub, sub), nil
}

func instrument(reg prometheus.Registerer, pub message.Publisher, sub message.Subscriber) (message.Publisher, message.Subscriber, error) {
	b := metrics.NewPrometheusMetricsBuilder(reg, "cloudvault", "mq")

	p, err := b.DecoratePublisher(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("decorate publisher: %w", err)
	}

	s, err := b.DecorateSubscriber(sub)
	if err != nil {
		return nil, nil, fmt.Errorf("decorate subscriber: %w", err)
	}

	return p, s, nil
}

var (
	mqOnce sync.Once
	mqInst *Client
	mqErr  error
)

// New 进程级单例，配置取自全局配置.
func New(ctx context.Context) (*Client, error) {
	mqOnce.Do(func() {
		cfg := configs.GetConfig()

		var reg prometheus.Registerer
		if cfg.Metrics.Enabled && cfg.MQ.EnableMetrics {
			reg = appmetrics.GetRegistry()
		}

		mqInst, mqErr = Open(ctx, cfg.MQ, reg)
		if mqErr == nil {
			l := nlog.Component("mq")
			l.Info().Str("type", string(cfg.MQ.Type)).Bool("metrics", reg != nil).Msg("mq client ready")
		}
	})

	return mqInst, mqErr
}
