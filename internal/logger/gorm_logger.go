package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger implements gormlogger.Interface with zap-backed structured logging.
type GormLogger struct {
	base                 *zap.Logger
	level                gormlogger.LogLevel
	slowThreshold        time.Duration
	ignoreRecordNotFound bool
}

// NewGormLogger builds a GormLogger that writes through base at warn level.
func NewGormLogger(base *zap.Logger) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLogger{
		base:                 base,
		level:                gormlogger.Warn,
		slowThreshold:        200 * time.Millisecond,
		ignoreRecordNotFound: true,
	}
}

// LogMode returns a logger with the updated level.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	copy := *l
	copy.level = level
	return &copy
}

// Info logs informational messages from GORM.
func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level < gormlogger.Info {
		return
	}
	l.from(ctx).Info(msg, zap.Any("data", data))
}

// Warn logs warning messages from GORM.
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level < gormlogger.Warn {
		return
	}
	l.from(ctx).Warn(msg, zap.Any("data", data))
}

// Error logs error messages from GORM.
func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level < gormlogger.Error {
		return
	}
	l.from(ctx).Error(msg, zap.Any("data", data))
}

// Trace logs SQL statements with structured fields.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && (!errors.Is(err, gormlogger.ErrRecordNotFound) || !l.ignoreRecordNotFound):
		sql, rows := fc()
		l.from(ctx).Error("gorm.query", append(queryFields(sql, rows, elapsed), zap.Error(err))...)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.from(ctx).Warn("gorm.slow_query", queryFields(sql, rows, elapsed)...)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.from(ctx).Debug("gorm.query", queryFields(sql, rows, elapsed)...)
	}
}

// ParamsFilter strips bound values so patient attributes never reach the logs.
func (l *GormLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) from(ctx context.Context) *zap.Logger {
	return WithContext(ctx, l.base).With(zap.String("component", "gorm"))
}

func queryFields(sql string, rows int64, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	return fields
}

var _ gormlogger.Interface = (*GormLogger)(nil)
