package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("ollama")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Equal(t, "[UPSTREAM_ERROR] upstream failed: root", err.Error())
	assert.Equal(t, "ollama", err.Provider)
}

func TestError_NoCause(t *testing.T) {
	t.Parallel()

	err := NewError(ErrNotFound, "File not found")
	assert.Equal(t, "[NOT_FOUND] File not found", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.False(t, IsRetryable(err))
}

func TestAsError_WrappedChain(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrUnknownTool, "Foo is not a recognized tool")
	wrapped := fmt.Errorf("dispatch: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, IsErrorCode(wrapped, ErrUnknownTool))
	assert.False(t, IsErrorCode(wrapped, ErrDuplicateTool))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, ErrInternalError, "x"))

	plain := errors.New("disk full")
	w := WrapError(plain, ErrToolExecution, "tool failed")
	require.NotNil(t, w)
	assert.Equal(t, ErrToolExecution, w.Code)
	assert.True(t, errors.Is(w, plain))

	existing := NewError(ErrTimeout, "slow")
	assert.Same(t, existing, WrapError(existing, ErrInternalError, "ignored"))
}
