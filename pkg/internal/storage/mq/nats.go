package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/cloudvault/pkg/configs"
)

const (
	natsDrainTimeout   = 30 * time.Second
	natsFlusherTimeout = 10 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// natsFactory Publisher 与 Subscriber 各自持有连接，JetStream 开启时消息持久化.
func natsFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	n := cfg.NATS

	opts, err := natsOptions(n)
	if err != nil {
		return nil, nil, err
	}

	url := n.URL
	if len(n.ClusterURLs) > 0 {
		url = strings.Join(n.ClusterURLs, ",")
	}

	js := nats.JetStreamConfig{
		Disabled:      !n.JetStream,
		AutoProvision: n.AutoProvision,
		TrackMsgId:    n.TrackMsgID,
		AckAsync:      n.AckAsync,
		DurablePrefix: n.DurablePrefix,
	}
	marshaler := &nats.JSONMarshaler{}

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		Marshaler:   marshaler,
		JetStream:   js,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("nats publisher: %w", err)
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              url,
		NatsOptions:      opts,
		Unmarshaler:      marshaler,
		JetStream:        js,
		QueueGroupPrefix: n.QueueGroup,
		AckWaitTimeout:   n.AckWait,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("nats subscriber: %w", err)
	}

	logger.Debug("nats connected", watermill.LogFields{
		"url":         url,
		"jetstream":   n.JetStream,
		"queue_group": n.QueueGroup,
	})

	return pub, sub, nil
}

func natsOptions(n configs.MQNATSConfig) ([]nc.Option, error) {
	opts := []nc.Option{
		nc.Name(n.ClientName),
		nc.MaxReconnects(n.MaxReconnects),
		nc.ReconnectWait(n.ReconnectWait),
		nc.PingInterval(n.PingInterval),
		nc.ReconnectBufSize(n.ReconnectBuffer),
		nc.DrainTimeout(natsDrainTimeout),
		nc.FlusherTimeout(natsFlusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	switch {
	case n.Credentials != "":
		opts = append(opts, nc.UserCredentials(n.Credentials))
	case n.NKeySeed != "":
		o, err := nc.NkeyOptionFromSeed(n.NKeySeed)
		if err != nil {
			return nil, fmt.Errorf("load nkey seed: %w", err)
		}

		opts = append(opts, o)
	case n.User != "":
		opts = append(opts, nc.UserInfo(n.User, n.Password))
	}

	return opts, nil
}
