package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoQuery struct{ Text string }

func (echoQuery) Key() string { return "test.echo" }

type otherQuery struct{}

func (otherQuery) Key() string { return "test.other" }

func TestAskRoutesToTypedHandler(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[echoQuery, string](bus, HandlerFunc[echoQuery, string](func(ctx context.Context, q echoQuery) (string, error) {
		return q.Text, nil
	}))

	out, err := Ask[echoQuery, string](context.Background(), bus, echoQuery{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = Ask[echoQuery, int](context.Background(), bus, echoQuery{})
	assert.ErrorIs(t, err, ErrResultType)
	var mismatch *ResultTypeError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, ResultTypeError{Key: "test.echo", Got: "string", Want: "int"}, *mismatch)
	assert.Equal(t, "test.echo", KeyOf[echoQuery]())

	_, err = Ask[otherQuery, string](context.Background(), bus, otherQuery{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[echoQuery, string](func(context.Context, echoQuery) (string, error) { return "", nil })
	RegisterHandler[echoQuery, string](bus, h)
	assert.Panics(t, func() { RegisterHandler[echoQuery, string](bus, h) })
}

func TestAskNilBus(t *testing.T) {
	_, err := Ask[echoQuery, string](context.Background(), nil, echoQuery{})
	assert.ErrorIs(t, err, ErrNilBus)
}
