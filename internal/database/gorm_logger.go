package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// slowQuery is the duration above which a statement is logged as slow.
const slowQuery = 200 * time.Millisecond

// GormLogger sends GORM output to slog. At the default Warn level only
// failed and slow statements are logged; record-not-found is never an error.
type GormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs through l at Warn level.
func NewGormLogger(l *slog.Logger) *GormLogger {
	return &GormLogger{log: l, level: logger.Warn, slow: slowQuery}
}

func (g *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (g *GormLogger) printf(ctx context.Context, threshold logger.LogLevel, level slog.Level, msg string, args []interface{}) {
	if g.level >= threshold {
		g.log.Log(ctx, level, fmt.Sprintf(msg, args...), slog.String("source", utils.FileWithLineNum()))
	}
}

// Trace is called once per statement.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= logger.Error:
		level, msg = slog.LevelError, "query failed"
	case g.slow > 0 && elapsed > g.slow && g.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case g.level >= logger.Info:
		level, msg = slog.LevelDebug, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
		slog.String("source", utils.FileWithLineNum()),
	}
	if err != nil && level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, level, msg, attrs...)
}
