//go:build !no_redis

package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/cloudvault/pkg/configs"
)

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisEnvelope Redis Pub/Sub 只传字节，UUID 与元数据随负载一起编码.
type redisEnvelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPubSub 同一个实例同时充当 Publisher 与 Subscriber.
// Redis Pub/Sub 不持久化也不重投，离线期间的消息会丢失，Nack 只记日志.
type RedisPubSub struct {
	rdb    *redis.Client
	logger watermill.LoggerAdapter
	buffer int

	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closing chan struct{}
}

var errPubSubClosed = errors.New("redis pubsub closed")

func redisFactory(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}

	ps := newRedisPubSub(rdb, logger, cfg.Redis.ChanBuffer)

	return ps, ps, nil
}

func newRedisPubSub(rdb *redis.Client, logger watermill.LoggerAdapter, buffer int) *RedisPubSub {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	return &RedisPubSub{rdb: rdb, logger: logger, buffer: max(buffer, 1), closing: make(chan struct{})}
}

func encodeRedis(msg *message.Message) ([]byte, error) {
	return sonic.Marshal(redisEnvelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
}

// decodeRedis 非本服务发布的原始字节整体作为负载.
func decodeRedis(raw string) *message.Message {
	var env redisEnvelope
	if err := sonic.UnmarshalString(raw, &env); err != nil || env.UUID == "" {
		return message.NewMessage(watermill.NewUUID(), []byte(raw))
	}

	msg := message.NewMessage(env.UUID, env.Payload)
	for k, v := range env.Metadata {
		msg.Metadata.Set(k, v)
	}

	return msg
}

// Publish 一批消息走一次 pipeline.
func (p *RedisPubSub) Publish(topic string, msgs ...*message.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	frames := make([][]byte, len(msgs))
	for i, m := range msgs {
		b, err := encodeRedis(m)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", m.UUID, err)
		}

		frames[i] = b
	}

	_, err := p.rdb.Pipelined(msgs[0].Context(), func(pipe redis.Pipeliner) error {
		for _, f := range frames {
			pipe.Publish(msgs[0].Context(), topic, f)
		}

		return nil
	})

	return err
}

// Subscribe 订阅确认后才返回；消息逐条投递，上一条 Ack/Nack 之前不会投递下一条.
func (p *RedisPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errPubSubClosed
	}

	ps := p.rdb.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	p.subs = append(p.subs, ps)

	out := make(chan *message.Message, p.buffer)
	go p.pump(ctx, ps.Channel(redis.WithChannelSize(p.buffer)), out)

	return out, nil
}

func (p *RedisPubSub) pump(ctx context.Context, in <-chan *redis.Message, out chan<- *message.Message) {
	defer close(out)

	for {
		var raw *redis.Message

		select {
		case r, ok := <-in:
			if !ok {
				return
			}

			raw = r
		case <-p.closing:
			return
		case <-ctx.Done():
			return
		}

		msg := decodeRedis(raw.Payload)
		msg.SetContext(ctx)

		select {
		case out <- msg:
		case <-p.closing:
			return
		case <-ctx.Done():
			return
		}

		select {
		case <-msg.Acked():
		case <-msg.Nacked():
			p.logger.Info("message nacked, dropped", watermill.LogFields{"uuid": msg.UUID, "channel": raw.Channel})
		case <-p.closing:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.closing)

	errs := make([]error, 0, len(p.subs)+1)
	for _, ps := range p.subs {
		errs = append(errs, ps.Close())
	}

	return errors.Join(append(errs, p.rdb.Close())...)
}
