package commands

import (
	"context"
	"fmt"
)

// KeyOf is the routing key of every C.
func KeyOf[C Command]() string {
	var zero C
	return zero.Key()
}

// ResultTypeError reports a handler result that is not the type the caller
// asked for. It matches ErrResultType.
type ResultTypeError struct {
	Key  string
	Got  string
	Want string
}

func (e *ResultTypeError) Error() string {
	return fmt.Sprintf("%s: %s returned %s, want %s", ErrResultType, e.Key, e.Got, e.Want)
}

func (e *ResultTypeError) Is(target error) bool { return target == ErrResultType }

// Dispatch sends cmd through bus and returns the result as R. A nil result
// becomes the zero R.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, &ResultTypeError{Key: cmd.Key(), Got: fmt.Sprintf("%T", res), Want: fmt.Sprintf("%T", zero)}
	}
	return value, nil
}
