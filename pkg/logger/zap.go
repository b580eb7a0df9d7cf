// Package logger — реализация ports.Logger поверх zap.
package logger

import (
	"context"

	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger — sugared-логгер с полями метаданных запроса из контекста.
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// NewZapLogger — production: JSON и уровень info, иначе консольный вывод с debug.
// Возвращаемая функция сбрасывает буферы, её вызывают при остановке.
func NewZapLogger(isProd bool) (*ZapLogger, func() error, error) {
	cfg := zap.NewDevelopmentConfig()
	if isProd {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]any{"service": "resto-sync"}

	base, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	z := NewFromZap(base)
	return z, func() error { return z.base.Sync() }, nil
}

// NewFromZap — обёртка над готовым *zap.Logger (тесты, observer).
func NewFromZap(base *zap.Logger) *ZapLogger {
	return &ZapLogger{base: base, sugar: base.Sugar()}
}

// Named — дочерний логгер компонента, например "syncer" или "worker".
func (z *ZapLogger) Named(name string) *ZapLogger {
	return NewFromZap(z.base.Named(name))
}

func (z *ZapLogger) Infof(ctx context.Context, format string, args ...any) {
	z.from(ctx).Infof(format, args...)
}

func (z *ZapLogger) Warnf(ctx context.Context, format string, args ...any) {
	z.from(ctx).Warnf(format, args...)
}

func (z *ZapLogger) Errorf(ctx context.Context, format string, args ...any) {
	z.from(ctx).Errorf(format, args...)
}

func (z *ZapLogger) from(ctx context.Context) *zap.SugaredLogger {
	if fields := ctxmeta.Fields(ctx); len(fields) > 0 {
		return z.sugar.With(fields...)
	}
	return z.sugar
}

func (z *ZapLogger) Base() *zap.Logger { return z.base }
