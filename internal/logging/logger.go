package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

// New builds the process logger: JSON in production or when format is
// "json", a colored console encoder otherwise.
func New(environment, level, format string) (*Logger, error) {
	var zapConfig zap.Config

	if environment == "production" || format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig = consoleEncoderConfig()
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// Default returns a basic logger for before configuration is available.
func Default() *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig = consoleEncoderConfig()
	logger, _ := cfg.Build()
	return &Logger{Logger: logger}
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	encConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeTime:     encodeTime,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	encConfig.ConsoleSeparator = "  "
	return encConfig
}

func encodeLevel(l zapcore.Level, p zapcore.PrimitiveArrayEncoder) {
	var level string
	var colorCode string

	switch l {
	case zapcore.DebugLevel:
		level = "DEBUG"
		colorCode = "\x1b[1;90m"
	case zapcore.InfoLevel:
		level = "INFO"
		colorCode = "\x1b[1;96m"
	case zapcore.WarnLevel:
		level = "WARN"
		colorCode = "\x1b[1;93m"
	case zapcore.ErrorLevel:
		level = "ERROR"
		colorCode = "\x1b[1;91m"
	case zapcore.FatalLevel:
		level = "FATAL"
		colorCode = "\x1b[1;95m"
	case zapcore.PanicLevel:
		level = "PANIC"
		colorCode = "\x1b[1;95m"
	default:
		level = l.String()
		colorCode = "\x1b[0m"
	}

	buf := buffer.Buffer{}
	buf.AppendString(colorCode)
	buf.AppendString(level)
	buf.AppendString("\x1b[0m")
	p.AppendString(buf.String())
}

func encodeTime(t time.Time, p zapcore.PrimitiveArrayEncoder) {
	p.AppendString("\x1b[35m" + t.Format("15:04:05.000") + "\x1b[0m")
}
