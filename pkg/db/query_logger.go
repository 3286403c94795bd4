package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

const maxLoggedSQL = 512

// queryLogger routes GORM's trace output through the service logger so slow
// statements carry the request id of the call that issued them. Failed
// statements log at debug; the caller decides whether the error matters.
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
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Debug(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := q.slow > 0 && elapsed > q.slow
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	if !slow && !failed {
		return
	}

	query, rows := fc()
	if len(query) > maxLoggedSQL {
		query = query[:maxLoggedSQL] + "..."
	}
	fields := map[string]any{
		"sql":        query,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if failed {
		fields["db_error"] = err.Error()
	}
	logCtx := q.logg.WithFields(ctx, fields)
	if slow && q.level >= gormlogger.Warn {
		q.logg.Warn(logCtx, "slow query")
		return
	}
	q.logg.Debug(logCtx, "query failed")
}
