package logger

import (
	"fmt"
	"log/slog"
	"testing"

	ethlog "github.com/ethereum/go-ethereum/log"
	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

var logger Logger

type PrintfLogger interface {
	Printf(string, ...any)
}

type Logger interface {
	PrintfLogger
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
	Fatalf(msg string, args ...interface{})
	With(fields ...interface{}) Logger
}

type ZapLogger struct {
	Logger       *zap.Logger
	loggerConfig zap.Config
}

type optionFunc func(*ZapLogger)

// InitLogger installs the package-level logger. Calling it again is a no-op.
func InitLogger(opts ...optionFunc) error {
	if logger != nil {
		return nil
	}
	zapLogger, err := NewZapLogger(opts...)
	if err != nil {
		return err
	}
	logger = zapLogger
	return nil
}

func NewZapLogger(opts ...optionFunc) (*ZapLogger, error) {
	loggerConfig := zap.NewProductionConfig()
	loggerZap := &ZapLogger{loggerConfig: loggerConfig}
	for _, opt := range opts {
		opt(loggerZap)
	}
	var err error
	loggerZap.Logger, err = loggerZap.loggerConfig.Build()
	if err != nil {
		return nil, err
	}
	return loggerZap, nil
}

type LevelAdapter struct {
	ZapLevel zapcore.Level
}

func (l LevelAdapter) Level() slog.Level {
	switch l.ZapLevel {
	case zapcore.DebugLevel:
		return slog.LevelDebug
	case zapcore.WarnLevel:
		return slog.LevelWarn
	case zapcore.ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BridgeEthereumLogs routes go-ethereum's internal logging through zap so RPC
// client warnings end up in the same stream as ours.
func BridgeEthereumLogs(zapLogger *zap.Logger, level zapcore.Level) *slog.Logger {
	handler := slogzap.Option{Logger: zapLogger, Level: LevelAdapter{ZapLevel: level}}.NewZapHandler()
	ethlog.SetDefault(ethlog.NewLogger(handler))
	return slog.New(handler)
}

func NewZapLoggerForTest(t *testing.T) Logger {
	return &ZapLogger{
		Logger: zaptest.NewLogger(t),
	}
}

func WithLevel(level zapcore.Level) optionFunc {
	return func(zl *ZapLogger) {
		zl.loggerConfig.Level = zap.NewAtomicLevelAt(level)
	}
}

func WithEncodeTime(timeKey string, timeEncoder zapcore.TimeEncoder) optionFunc {
	return func(zl *ZapLogger) {
		zl.loggerConfig.EncoderConfig.TimeKey = timeKey
		zl.loggerConfig.EncoderConfig.EncodeTime = timeEncoder
	}
}

// WithConsole switches to the human readable console encoder.
func WithConsole() optionFunc {
	return func(zl *ZapLogger) {
		zl.loggerConfig.Encoding = "console"
		zl.loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
}

func GetLogger() Logger {
	if logger == nil {
		return nopLogger()
	}
	return logger
}

// Wallet returns a logger whose messages carry the wallet's position in the batch.
func Wallet(index, total int, address string) Logger {
	return GetLogger().With("wallet", fmt.Sprintf("%d/%d", index, total), "address", address)
}

func Debugf(msg string, fields ...interface{}) {
	GetLogger().Debugf(msg, fields...)
}

func Infof(msg string, fields ...interface{}) {
	GetLogger().Infof(msg, fields...)
}

func Warnf(msg string, fields ...interface{}) {
	GetLogger().Warnf(msg, fields...)
}

func Errorf(msg string, fields ...interface{}) {
	GetLogger().Errorf(msg, fields...)
}

func Fatalf(msg string, fields ...interface{}) {
	GetLogger().Fatalf(msg, fields...)
}

func (l *ZapLogger) Debugf(msg string, args ...interface{}) {
	l.Logger.Sugar().Debugf(msg, args...)
}

func (l *ZapLogger) Infof(msg string, args ...interface{}) {
	l.Logger.Sugar().Infof(msg, args...)
}

func (l *ZapLogger) Warnf(msg string, args ...interface{}) {
	l.Logger.Sugar().Warnf(msg, args...)
}

func (l *ZapLogger) Errorf(msg string, args ...interface{}) {
	l.Logger.Sugar().Errorf(msg, args...)
}

func (l *ZapLogger) Fatalf(msg string, args ...interface{}) {
	l.Logger.Sugar().Fatalf(msg, args...)
}

func (l *ZapLogger) Printf(msg string, args ...interface{}) {
	l.Logger.Sugar().Infof(msg, args...)
}

func (l *ZapLogger) With(fields ...interface{}) Logger {
	return &ZapLogger{Logger: l.Logger.Sugar().With(fields...).Desugar(), loggerConfig: l.loggerConfig}
}

func nopLogger() Logger {
	return &ZapLogger{Logger: zap.NewNop()}
}

func NewLogger(loggerLevel string, console bool) (*ZapLogger, error) {
	zapLevel, err := zapcore.ParseLevel(loggerLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse logger level: %v", err)
	}
	opts := []optionFunc{WithLevel(zapLevel), WithEncodeTime("timestamp", zapcore.ISO8601TimeEncoder)}
	if console {
		opts = append(opts, WithConsole())
	}
	return NewZapLogger(opts...)
}

// SetLogger replaces the package-level logger, used by main after parsing the config.
func SetLogger(l Logger) {
	logger = l
}
