package middleware

import (
	"context"
	"log/slog"
	"time"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/queries"
	"listingchat/internal/domain/shared/errkind"
)

// Logging logs every command with its duration. Caller errors and missing
// targets are logged at info level, everything else at error level.
func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		if logger == nil {
			return next
		}
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

// QueryLogging logs queries at debug level and failures like Logging does.
func QueryLogging(logger *slog.Logger) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		if logger == nil {
			return next
		}
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			if err == nil {
				logger.DebugContext(ctx, "query handled", "query", q.Key(), "duration", time.Since(start))
				return res, nil
			}
			logOutcome(ctx, logger, "query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, kind, key string, took time.Duration, err error) {
	if err == nil {
		logger.InfoContext(ctx, kind+" handled", kind, key, "duration", took)
		return
	}
	errKind := errkind.Of(err)
	attrs := []any{kind, key, "duration", took, "error_kind", string(errKind), "error", err}
	switch {
	case errkind.IsCallerError(err):
		logger.InfoContext(ctx, kind+" rejected", attrs...)
	case errKind == errkind.NotFound:
		logger.InfoContext(ctx, kind+" target missing", attrs...)
	default:
		logger.ErrorContext(ctx, kind+" failed", attrs...)
	}
}
