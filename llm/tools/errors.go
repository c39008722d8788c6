package tools

import (
	"fmt"
	"net/http"

	"github.com/BaSui01/finagent/types"
)

// DuplicateNameError is returned by Register when the name is taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError is returned by Lookup when no tool has the exact name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s is not a recognized tool", e.Name)
}

// ToTypesError converts registry errors for the HTTP layer.
func ToTypesError(err error) *types.Error {
	switch e := err.(type) {
	case nil:
		return nil
	case *UnknownToolError:
		return types.NewError(types.ErrUnknownTool, e.Error()).WithHTTPStatus(http.StatusNotFound)
	case *DuplicateNameError:
		return types.NewError(types.ErrDuplicateTool, e.Error()).WithHTTPStatus(http.StatusConflict)
	default:
		return types.WrapError(err, types.ErrInternalError, "tool registry error")
	}
}
