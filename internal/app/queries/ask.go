package queries

import (
	"context"
	"fmt"
)

func KeyOf[Q Query]() string {
	var zero Q
	return zero.Key()
}

// ResultTypeError matches ErrResultType.
type ResultTypeError struct {
	Key  string
	Got  string
	Want string
}

func (e *ResultTypeError) Error() string {
	return fmt.Sprintf("%s: %s answered %s, want %s", ErrResultType, e.Key, e.Got, e.Want)
}

func (e *ResultTypeError) Is(target error) bool { return target == ErrResultType }

// Ask runs query through bus and returns the answer as R.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, &ResultTypeError{Key: query.Key(), Got: fmt.Sprintf("%T", res), Want: fmt.Sprintf("%T", zero)}
	}
	return value, nil
}
