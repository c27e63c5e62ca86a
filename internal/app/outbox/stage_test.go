package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithStageReusesOuterStage(t *testing.T) {
	ctx, outer, nested := WithStage(context.Background())
	require.False(t, nested)
	inner, st, nested := WithStage(ctx)
	assert.True(t, nested)
	assert.Same(t, outer, st)

	st.Add(EventRecord{ID: "e1"})
	got, ok := StageFrom(inner)
	require.True(t, ok)
	assert.Len(t, got.Take(), 1)
	assert.Empty(t, outer.Take())
}
