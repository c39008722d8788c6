package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/finagent/llm/tools"
	"go.uber.org/zap"
)

// InvalidExpression is returned for any input Evaluate rejects.
const InvalidExpression = "Invalid math expression."

// Calculate evaluates input and formats the result, or returns InvalidExpression.
func Calculate(input string) string {
	v, err := Evaluate(strings.Trim(strings.TrimSpace(input), "\"'`"))
	if err != nil {
		return InvalidExpression
	}
	return FormatNumber(v)
}

// NewCalculatorTool returns the Calculator tool.
func NewCalculatorTool(logger *zap.Logger) tools.ToolSpec {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("tool", tools.ToolCalculator.String()))
	return tools.ToolSpec{
		Name:        tools.ToolCalculator.String(),
		Description: "Evaluate an arithmetic expression with numbers, + - * / and parentheses, e.g. (1200*0.05)/12.",
		Timeout:     time.Second,
		Handler: func(_ context.Context, arg string) string {
			out := Calculate(arg)
			if out == InvalidExpression {
				logger.Debug("rejected expression", zap.Int("length", len(arg)))
			}
			return out
		},
	}
}
