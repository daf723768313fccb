package logger

import (
	"course_engine_backend/internal/config"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前为 Nop，测试与工具代码可直接使用
var Log = zap.NewNop()

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}

// level 未显式配置时 debug 模式输出 debug，其余 info
func level(cfg *config.Config) (zapcore.Level, error) {
	if cfg.Log.Level == "" {
		if cfg.Server.Mode == "debug" {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	return lvl, nil
}

// Build 按配置组装 logger：文件输出为 JSON 并按大小滚动，控制台在 release 模式下也用 JSON
func Build(cfg *config.Config) (*zap.Logger, error) {
	lvl, err := level(cfg)
	if err != nil {
		return nil, err
	}

	var cores []zapcore.Core
	if cfg.Log.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotate), lvl))
	}
	if cfg.Log.Console {
		consoleEnc := zapcore.NewConsoleEncoder(encoderConfig())
		if cfg.Server.Mode == "release" {
			consoleEnc = zapcore.NewJSONEncoder(encoderConfig())
		}
		cores = append(cores, zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), lvl))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", "course-engine")), nil
}

func InitLogger(cfg *config.Config) error {
	l, err := Build(cfg)
	if err != nil {
		return err
	}
	Log = l
	return nil
}
