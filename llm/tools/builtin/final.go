package builtin

import (
	"context"
	"time"

	"github.com/BaSui01/finagent/llm/tools"
)

// NewFinalAnswerTool returns the identity tool the reasoning loop treats as
// its termination marker.
func NewFinalAnswerTool() tools.ToolSpec {
	return tools.ToolSpec{
		Name:        tools.ToolFinalAnswer.String(),
		Description: "Use this to give the final answer to the user. Input: the answer.",
		Timeout:     time.Second,
		Handler: func(_ context.Context, arg string) string {
			return arg
		},
	}
}
