// Package log 提供全局 zerolog logger，输出到 stderr 并可选写入 lumberjack 轮转文件.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/cloudvault/pkg/configs"
)

var (
	logger   zerolog.Logger
	initOnce sync.Once
)

// Init 按全局配置初始化 logger，只在第一次调用时生效.
func Init() {
	initOnce.Do(initLogger)
}

func initLogger() {
	cfg := configs.GetConfig()
	logCfg := cfg.Log

	if err := SetLevel(logCfg.Level); err != nil {
		fmt.Fprintf(os.Stderr, "%v, defaulting to info\n", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var stderr io.Writer = os.Stderr
	if logCfg.Format != configs.LogFormatJSON {
		stderr = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.Kitchen
		})
	}

	writers := []io.Writer{stderr}

	// 文件总是 JSON，便于采集
	if f := logCfg.File; f.Enabled {
		writers = append(writers, &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAgeDays,
			Compress:   f.Compress,
		})
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if cfg.Server.Debug {
		ctx = ctx.Caller().Stack()
	}

	logger = ctx.Logger()
	log.Logger = logger
}

// Logger 返回全局 logger，首次调用时初始化.
func Logger() *zerolog.Logger {
	initOnce.Do(initLogger)

	return &logger
}

// SetLevel 修改全局日志级别，空串为 info；无法解析时设为 info 并返回错误.
func SetLevel(level string) error {
	if level == "" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return nil
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return fmt.Errorf("invalid log level %q", level)
	}

	zerolog.SetGlobalLevel(lvl)

	return nil
}

// Component 带 component 字段的子 logger.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// GinWriter 把 gin 自身输出的文本行转发为 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	// gin 的调试输出带 [GIN-debug] 前缀，统一降为 debug
	lvl := w.level
	if strings.HasPrefix(msg, "[GIN-debug]") {
		lvl = zerolog.DebugLevel
		msg = strings.TrimSpace(strings.TrimPrefix(msg, "[GIN-debug]"))
	}

	w.logger.WithLevel(lvl).Str("component", "gin").Msg(msg)

	return len(p), nil
}
