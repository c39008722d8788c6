package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/finagent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echo(_ context.Context, arg string) string { return arg }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register(ToolSpec{Name: "Echo", Description: "echoes", Handler: echo}))

	spec, err := r.Lookup("Echo")
	require.NoError(t, err)
	assert.Equal(t, "echoes", spec.Description)
	assert.Equal(t, DefaultToolTimeout, spec.Timeout)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(ToolSpec{Name: "Echo", Handler: echo}))

	err := r.Register(ToolSpec{Name: "Echo", Handler: echo})
	var dup *DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "Echo", dup.Name)

	te := ToTypesError(err)
	assert.Equal(t, types.ErrDuplicateTool, te.Code)
	assert.Equal(t, 409, te.HTTPStatus)
}

func TestRegistry_CaseSensitiveNamesAreDistinct(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(ToolSpec{Name: "Echo", Handler: echo}))
	require.NoError(t, r.Register(ToolSpec{Name: "echo", Handler: echo}))
	assert.Equal(t, []string{"Echo", "echo"}, r.Names())
}

func TestRegistry_LookupIsExact(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(ToolSpec{Name: "Calculator", Handler: echo}))

	for _, name := range []string{"calculator", "Calculator ", " Calculator", "CALCULATOR", ""} {
		_, err := r.Lookup(name)
		var unknown *UnknownToolError
		require.True(t, errors.As(err, &unknown), "name %q", name)
		assert.Equal(t, name+" is not a recognized tool", err.Error())
	}
}

func TestRegistry_RejectsInvalidSpecs(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Register(ToolSpec{Handler: echo})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	err = r.Register(ToolSpec{Name: "NoHandler"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_FrozenIsReadOnly(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(ToolSpec{Name: "Echo", Handler: echo}))
	r.Freeze()
	r.Freeze()

	assert.True(t, r.Frozen())
	err := r.Register(ToolSpec{Name: "Late", Handler: echo})
	assert.True(t, types.IsErrorCode(err, types.ErrRegistryFrozen))

	_, err = r.Lookup("Echo")
	assert.NoError(t, err)
}

func TestRegistry_SpecsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	for _, n := range []string{"Time", "Calculator", "Final Answer"} {
		require.NoError(t, r.Register(ToolSpec{Name: n, Handler: echo, Timeout: time.Second}))
	}

	specs := r.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "Time", specs[0].Name)
	assert.Equal(t, "Final Answer", specs[2].Name)
	assert.Equal(t, time.Second, specs[1].Timeout)
}

func TestToTypesError(t *testing.T) {
	assert.Nil(t, ToTypesError(nil))
	te := ToTypesError(&UnknownToolError{Name: "Foo"})
	assert.Equal(t, types.ErrUnknownTool, te.Code)
	assert.Equal(t, 404, te.HTTPStatus)
	assert.Equal(t, types.ErrInternalError, ToTypesError(errors.New("x")).Code)
}
