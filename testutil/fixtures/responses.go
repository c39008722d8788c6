// Package fixtures holds canned model completions in the ReAct text format.
package fixtures

import "fmt"

// Action is a completion that calls tool with input.
func Action(thought, tool, input string) string {
	return fmt.Sprintf(" %s\nAction: %s\nAction Input: %s", thought, tool, input)
}

// FinalAnswer is a completion that ends the run with answer.
func FinalAnswer(thought, answer string) string {
	return fmt.Sprintf(" %s\nFinal Answer: %s", thought, answer)
}

// MissingAction is a completion with a thought only.
func MissingAction(thought string) string {
	return " " + thought
}

// MissingActionInput names a tool without giving its input.
func MissingActionInput(tool string) string {
	return fmt.Sprintf(" I should use a tool\nAction: %s", tool)
}

// ActionAndAnswer is the malformed mix of an action and a final answer.
func ActionAndAnswer(tool, input, answer string) string {
	return fmt.Sprintf(" Let me check\nAction: %s\nAction Input: %s\nFinal Answer: %s", tool, input, answer)
}
