package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingCommand struct{ N int }

func (pingCommand) Key() string { return "test.ping" }

type otherCommand struct{}

func (otherCommand) Key() string { return "test.other" }

func TestDispatchTyped(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[pingCommand, int](bus, HandlerFunc[pingCommand, int](func(ctx context.Context, cmd pingCommand) (int, error) {
		return cmd.N * 2, nil
	}))

	got, err := Dispatch[pingCommand, int](context.Background(), bus, pingCommand{N: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, []string{"test.ping"}, bus.Keys())

	_, err = Dispatch[pingCommand, string](context.Background(), bus, pingCommand{N: 1})
	assert.ErrorIs(t, err, ErrResultType)
	var mismatch *ResultTypeError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "int", mismatch.Got)
	assert.Equal(t, "string", mismatch.Want)
	assert.Contains(t, err.Error(), "test.ping")
}

func TestDispatchUnknown(t *testing.T) {
	bus := NewInMemoryBus()
	_, err := bus.Dispatch(context.Background(), otherCommand{})
	assert.True(t, errors.Is(err, ErrHandlerNotFound))

	_, err = Dispatch[otherCommand, int](context.Background(), nil, otherCommand{})
	assert.ErrorIs(t, err, ErrNilBus)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[pingCommand, int](func(context.Context, pingCommand) (int, error) { return 0, nil })
	RegisterHandler[pingCommand, int](bus, h)
	assert.Panics(t, func() { RegisterHandler[pingCommand, int](bus, h) })
}
