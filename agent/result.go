package agent

import "github.com/BaSui01/finagent/llm/tools"

// AgentResult is the terminal value of one run: Finished or Trace.
type AgentResult interface {
	agentResult()
}

// Step is one Action/Observation pair. Log keeps the raw model output for the scratchpad.
type Step struct {
	Invocation  tools.Invocation  `json:"invocation"`
	Observation tools.Observation `json:"observation"`
	Log         string            `json:"-"`
}

// Finished is returned when the model produced a final answer.
type Finished struct {
	Output string `json:"output"`
	Steps  []Step `json:"steps,omitempty"`
}

// Trace is returned when the loop stopped without a final answer.
type Trace struct {
	Steps []Step `json:"steps"`
}

func (Finished) agentResult() {}
func (Trace) agentResult()    {}

// StepsOf returns the steps carried by r.
func StepsOf(r AgentResult) []Step {
	switch v := r.(type) {
	case Finished:
		return v.Steps
	case *Finished:
		if v != nil {
			return v.Steps
		}
	case Trace:
		return v.Steps
	case *Trace:
		if v != nil {
			return v.Steps
		}
	}
	return nil
}
