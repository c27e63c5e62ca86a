package middleware

import (
	"context"
	"log/slog"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/outbox"
)

// OutboxFlush flushes recorded events after a successful command. Records
// staged by a failed command are discarded. A failed flush is logged and
// does not fail a command whose writes already landed; durable outboxes
// retry from their own store.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, stage, nested := outbox.WithStage(ctx)
			res, err := next.Dispatch(ctx, cmd)
			if nested {
				return res, err
			}
			if err != nil {
				if dropped := stage.Take(); len(dropped) > 0 && logger != nil {
					logger.Debug("outbox records discarded", "command", cmd.Key(), "count", len(dropped))
				}
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
