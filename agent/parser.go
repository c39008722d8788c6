package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/finagent/llm/tools"
)

const finalAnswerMarker = "Final Answer:"

// Observations sent back to the model when its output cannot be parsed.
const (
	MissingActionMessage      = "Invalid Format: Missing 'Action:' after 'Thought:'"
	MissingActionInputMessage = "Invalid Format: Missing 'Action Input:' after 'Action:'"
	InvalidResponseMessage    = "Invalid or incomplete response"
)

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputPattern = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
)

// Decision is what one model completion asks for: Act or Finish.
type Decision interface {
	decision()
}

// Act asks for a tool call. Tool is ToolUnknown for names outside the fixed set.
type Act struct {
	Tool       tools.ToolID
	Invocation tools.Invocation
	Log        string
}

// Finish carries the text after "Final Answer:".
type Finish struct {
	Output string
	Log    string
}

func (Act) decision()    {}
func (Finish) decision() {}

// ParseError is returned for output that is neither an action nor a final answer.
type ParseError struct {
	Output      string
	Observation string
	reason      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: `%s`", e.reason, e.Output)
}

// Parse reads a Thought/Action/Action Input completion.
func Parse(text string) (Decision, error) {
	hasFinal := strings.Contains(text, finalAnswerMarker)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if hasFinal {
			return nil, &ParseError{
				Output:      text,
				Observation: InvalidResponseMessage,
				reason:      "parsing LLM output produced both a final answer and a parse-able action",
			}
		}
		name := strings.TrimSpace(m[1])
		arg := strings.Trim(strings.TrimSpace(m[2]), `"`)
		return Act{
			Tool:       tools.ParseToolID(name),
			Invocation: tools.Invocation{ToolName: name, Argument: arg},
			Log:        text,
		}, nil
	}

	if hasFinal {
		parts := strings.Split(text, finalAnswerMarker)
		return Finish{Output: strings.TrimSpace(parts[len(parts)-1]), Log: text}, nil
	}

	switch {
	case !actionOnlyPattern.MatchString(text):
		return nil, &ParseError{Output: text, Observation: MissingActionMessage, reason: "could not parse LLM output"}
	case !actionInputPattern.MatchString(text):
		return nil, &ParseError{Output: text, Observation: MissingActionInputMessage, reason: "could not parse LLM output"}
	default:
		return nil, &ParseError{Output: text, Observation: InvalidResponseMessage, reason: "could not parse LLM output"}
	}
}
