package mq

import (
	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// watermillLogger 把 watermill 的日志写入 zerolog.
// watermill 的 Info 日志在每次订阅、关闭时都会输出，这里降为 Debug.
type watermillLogger struct {
	l zerolog.Logger
}

func newWatermillLogger(l zerolog.Logger, backend string) watermill.LoggerAdapter {
	return &watermillLogger{l: l.With().Str("component", "mq").Str("mq", backend).Logger()}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.l.Error().Err(err).Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.l.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.l.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.l.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{l: w.l.With().Fields(map[string]any(fields)).Logger()}
}
