package agent

import (
	"testing"

	"github.com/BaSui01/finagent/llm/tools"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func step(tool, arg, obs string) Step {
	return Step{
		Invocation:  tools.Invocation{ToolName: tool, Argument: arg},
		Observation: tools.Observation{Text: obs},
	}
}

func TestNormalize(t *testing.T) {
	trace := []Step{step("Calculator", "2+2", "4"), step("Stock Price", "AAPL", "obs2")}

	tests := []struct {
		name       string
		result     AgentResult
		want       string
		wantSource string
	}{
		{"finished", Finished{Output: "X"}, "X", SourceFinished},
		{"finished wins over steps", Finished{Output: "X", Steps: trace}, "X", SourceFinished},
		{"finished pointer", &Finished{Output: "Y"}, "Y", SourceFinished},
		{"empty finished output", Finished{Output: ""}, "", SourceFinished},
		{"trace last observation", Trace{Steps: trace}, "obs2", SourceLastObservation},
		{"trace pointer", &Trace{Steps: trace[:1]}, "4", SourceLastObservation},
		{"empty trace", Trace{}, "{Steps:[]}", SourceFallback},
		{"nil", nil, "<nil>", SourceFallback},
		{"nil finished pointer", (*Finished)(nil), "<nil>", SourceFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source := NormalizeWithSource(tt.result)
			assert.Equal(t, tt.want, got.Response)
			assert.Equal(t, tt.wantSource, source)
			assert.Equal(t, got, Normalize(tt.result))
		})
	}
}

func TestStepsOf(t *testing.T) {
	s := []Step{step("Time", "", "09:00 AM")}
	assert.Equal(t, s, StepsOf(Finished{Steps: s}))
	assert.Equal(t, s, StepsOf(&Trace{Steps: s}))
	assert.Nil(t, StepsOf(nil))
	assert.Nil(t, StepsOf((*Trace)(nil)))
}

func TestProperty_NormalizePriority(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	buildSteps := func(obs []string) []Step {
		steps := make([]Step, len(obs))
		for i, o := range obs {
			steps[i] = step("Calculator", "1", o)
		}
		return steps
	}

	properties.Property("a final answer always wins", prop.ForAll(
		func(output string, obs []string) bool {
			return Normalize(Finished{Output: output, Steps: buildSteps(obs)}).Response == output
		},
		gen.AnyString(),
		gen.SliceOf(gen.AnyString()),
	))

	properties.Property("a non-empty trace answers with its last observation", prop.ForAll(
		func(first string, rest []string) bool {
			obs := append([]string{first}, rest...)
			return Normalize(Trace{Steps: buildSteps(obs)}).Response == obs[len(obs)-1]
		},
		gen.AnyString(),
		gen.SliceOf(gen.AnyString()),
	))

	properties.Property("normalizing is deterministic", prop.ForAll(
		func(obs []string) bool {
			r := Trace{Steps: buildSteps(obs)}
			return Normalize(r) == Normalize(r)
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
