package agent

import "fmt"

// Response is the only value returned across the HTTP boundary.
type Response struct {
	Response string `json:"response"`
}

// Where a Response came from.
const (
	SourceFinished        = "finished"
	SourceLastObservation = "last_observation"
	SourceFallback        = "fallback"
)

// Normalize turns a run result into a Response. A final answer wins, then the
// last observation of a non-empty trace, then the printed result.
func Normalize(r AgentResult) Response {
	resp, _ := NormalizeWithSource(r)
	return resp
}

// NormalizeWithSource is Normalize plus the rule that produced the answer.
func NormalizeWithSource(r AgentResult) (Response, string) {
	switch v := r.(type) {
	case Finished:
		return Response{Response: v.Output}, SourceFinished
	case *Finished:
		if v != nil {
			return Response{Response: v.Output}, SourceFinished
		}
	case Trace:
		if n := len(v.Steps); n > 0 {
			return Response{Response: v.Steps[n-1].Observation.Text}, SourceLastObservation
		}
	case *Trace:
		if v != nil && len(v.Steps) > 0 {
			return Response{Response: v.Steps[len(v.Steps)-1].Observation.Text}, SourceLastObservation
		}
	}
	return Response{Response: fmt.Sprintf("%+v", r)}, SourceFallback
}
