package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/finagent/llm/tools"
)

// NoExplanation is returned when no phrase matches.
const NoExplanation = "No explanation available."

// Concept pairs a phrase with its explanation.
type Concept struct {
	Phrase      string `yaml:"phrase" json:"phrase"`
	Explanation string `yaml:"explanation" json:"explanation"`
}

// DefaultConcepts is checked in order; the first match wins.
var DefaultConcepts = []Concept{
	{Phrase: "compound interest", Explanation: "Compound interest is interest on both principal and accumulated interest."},
	{Phrase: "diversification", Explanation: "Diversification mixes different investments to reduce risk."},
}

// ExplainConcept returns the explanation of the first phrase contained in
// query, compared case-insensitively.
func ExplainConcept(concepts []Concept, query string) string {
	q := strings.ToLower(query)
	for _, c := range concepts {
		if c.Phrase != "" && strings.Contains(q, strings.ToLower(c.Phrase)) {
			return c.Explanation
		}
	}
	return NoExplanation
}

// NewConceptTool returns the Concept Explainer tool. nil concepts uses DefaultConcepts.
func NewConceptTool(concepts []Concept) tools.ToolSpec {
	if concepts == nil {
		concepts = DefaultConcepts
	}
	table := append([]Concept(nil), concepts...)
	return tools.ToolSpec{
		Name:        tools.ToolConceptExplainer.String(),
		Description: "Explain a finance concept simply.",
		Timeout:     time.Second,
		Handler: func(_ context.Context, arg string) string {
			return ExplainConcept(table, arg)
		},
	}
}
