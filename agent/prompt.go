package agent

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/BaSui01/finagent/llm/tools"
)

// DefaultPromptTemplate is the ReAct prompt. Fields: .Input, .Tools,
// .ToolNames and .Scratchpad.
const DefaultPromptTemplate = `You are a helpful assistant that can use tools to answer questions.

Question: {{.Input}}

Available tools:
{{.Tools}}

Available tool names: [{{.ToolNames}}]

You must follow this exact sequence:
1. Use the appropriate tool to get the information
2. The tool's response will be your final answer

Example for concept explanation:
Question: What is compound interest?
Thought: I need to explain compound interest
Action: Concept Explainer
Action Input: compound interest
Observation: Compound interest is interest on both principal and accumulated interest.

{{.Scratchpad}}

Begin!

Thought:`

// PromptData fills the template.
type PromptData struct {
	Input      string
	Tools      string
	ToolNames  string
	Scratchpad string
}

// Prompt renders the ReAct prompt.
type Prompt struct {
	tmpl *template.Template
}

// NewPrompt parses text. An empty text uses DefaultPromptTemplate.
func NewPrompt(text string) (*Prompt, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("react").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: tmpl}, nil
}

// Render executes the template.
func (p *Prompt) Render(data PromptData) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// DescribeTools lists specs one per line as "Name: Description" and returns
// the comma-separated names.
func DescribeTools(specs []tools.ToolSpec) (list, names string) {
	lines := make([]string, len(specs))
	ns := make([]string, len(specs))
	for i, s := range specs {
		lines[i] = s.Name + ": " + s.Description
		ns[i] = s.Name
	}
	return strings.Join(lines, "\n"), strings.Join(ns, ", ")
}

// Scratchpad renders steps the way the model wrote them, each followed by
// its observation and a new "Thought: " prefix.
func Scratchpad(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(s.Log)
		b.WriteString("\nObservation: ")
		b.WriteString(s.Observation.Text)
		b.WriteString("\nThought: ")
	}
	return b.String()
}
