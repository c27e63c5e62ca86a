package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"listingchat/internal/app/commands"
)

// IdempotentCommand is implemented by commands whose results may be replayed
// for a repeated client key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // pointer to the handler result type
}

// Replayable results are told when they are served from the cache.
type Replayable interface {
	MarkReplayed()
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays cached successful results for repeated keys. Failures
// are never cached, so a retried command fails or succeeds on its own merits
// and typed errors reach the caller intact. The cache is an optimisation;
// handlers still deduplicate at the store. Cache read and write failures are
// logged and the command runs normally.
func Idempotency(store IdempotencyStore, codec ResultCodec, logger *slog.Logger) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				warn(logger, "idempotency lookup failed", key, err)
			}
			if found {
				proto := idCmd.ResultPrototype()
				if proto == nil {
					return nil, errMissingPrototype
				}
				if err := codec.Decode(rec.Payload, proto); err == nil {
					if r, ok := proto.(Replayable); ok {
						r.MarkReplayed()
					}
					return normalizePrototype(proto), nil
				}
				warn(logger, "idempotency record unreadable", key, err)
			}

			result, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			payload, encErr := codec.Encode(result)
			if encErr != nil {
				warn(logger, "idempotency encode failed", key, encErr)
				return result, nil
			}
			record := IdempotencyRecord{Key: key, Payload: payload, OccurredAt: time.Now().UTC()}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				warn(logger, "idempotency save failed", key, saveErr)
			}
			return result, nil
		})
	}
}

func warn(logger *slog.Logger, msg, key string, err error) {
	if logger != nil {
		logger.Warn(msg, "key", key, "error", err)
	}
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
