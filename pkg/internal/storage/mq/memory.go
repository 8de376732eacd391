package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// init 注册进程内工厂.
func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory 基于 gochannel 的进程内发布订阅，消息不跨进程.
func memoryFactory(
	_ context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	ps := NewMemoryPubSub(cfg.Memory, logger)

	return ps, ps, nil
}

// NewMemoryPubSub 创建 gochannel 实例.
func NewMemoryPubSub(cfg configs.MQMemoryConfig, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.OutputBuffer,
		Persistent:          cfg.Persistent,
	}, logger)
}
