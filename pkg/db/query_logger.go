package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront/pkg/logger"
)

// queryLogger routes gorm's statement tracing into the service logger. Only
// failed statements and those slower than slow are emitted.
type queryLogger struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow, level: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *q
	next.level = level
	return &next
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, "db.error", errors.New(fmt.Sprintf(msg, args...)))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && elapsed > q.slow
	if !failed && !slow {
		return
	}

	query, rows := fc()
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sql":        query,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	if failed {
		// Callers translate and report the error; this keeps the statement.
		q.logg.Debug(q.logg.WithField(ctx, "db_error", err.Error()), "db.query.failed")
		return
	}
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, "db.query.slow")
	}
}
