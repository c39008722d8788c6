package builtin

import (
	"fmt"

	"github.com/BaSui01/finagent/llm/tools"
	"go.uber.org/zap"
)

// Dependencies carries everything the built-in tools need.
type Dependencies struct {
	Time     TimeConfig
	Concepts []Concept
	Quote    QuoteConfig
	Files    FileConfig
	Logger   *zap.Logger
}

// Specs builds the built-in tools in their fixed order.
func Specs(deps Dependencies) []tools.ToolSpec {
	return []tools.ToolSpec{
		NewTimeTool(deps.Time),
		NewConceptTool(deps.Concepts),
		NewCalculatorTool(deps.Logger),
		NewQuoteTool(deps.Quote, deps.Logger).Spec(),
		NewCSVTool(deps.Files),
		NewPDFTool(deps.Files),
		NewFinalAnswerTool(),
	}
}

// RegisterAll registers every built-in tool into reg.
func RegisterAll(reg *tools.Registry, deps Dependencies) error {
	for _, spec := range Specs(deps) {
		if err := reg.Register(spec); err != nil {
			return fmt.Errorf("register %s: %w", spec.Name, err)
		}
	}
	return nil
}
