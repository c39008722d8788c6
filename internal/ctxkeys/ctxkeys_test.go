package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")

	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	id, _ = TraceID(ctx)
	assert.Equal(t, "trace-1", id)

	id, _ = RunID(ctx)
	assert.Equal(t, "run-1", id)

	_, ok = RunID(WithRunID(context.Background(), ""))
	assert.False(t, ok)
}
