package api

import (
	"time"

	"github.com/BaSui01/finagent/agent"
)

// QueryRequest is the body of POST /query. Filename names a file previously
// stored through POST /upload.
type QueryRequest struct {
	Query    string `json:"query" example:"What is the current price of AAPL?"`
	Filename string `json:"filename,omitempty" example:"statement.pdf"`
}

// QueryResponse is the body of a successful POST /query.
type QueryResponse = agent.Response

// DetailError is the error body of /query and /upload: {"detail": "..."}.
type DetailError struct {
	Detail string `json:"detail"`
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// InvokeToolRequest calls a tool directly, bypassing the model.
type InvokeToolRequest struct {
	Tool     string `json:"tool" example:"Calculator"`
	Argument string `json:"argument" example:"2 + 2"`
}

// InvokeToolResponse carries the observation the tool produced.
type InvokeToolResponse struct {
	Tool    string `json:"tool"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}

// QueryStep is one tool call of a recorded run.
type QueryStep struct {
	Tool     string `json:"tool"`
	Argument string `json:"argument"`
	Output   string `json:"output"`
	IsError  bool   `json:"is_error,omitempty"`
}

// QueryRecord is one entry of the query history.
type QueryRecord struct {
	ID         string      `json:"id"`
	RequestID  string      `json:"request_id,omitempty"`
	Query      string      `json:"query"`
	FilePath   string      `json:"file_path,omitempty"`
	Response   string      `json:"response,omitempty"`
	Source     string      `json:"source"`
	Steps      []QueryStep `json:"steps,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewQueryRecord converts a stored agent record.
func NewQueryRecord(rec agent.Record) QueryRecord {
	out := QueryRecord{
		ID:         rec.ID,
		RequestID:  rec.RequestID,
		Query:      rec.Query,
		FilePath:   rec.FilePath,
		Response:   rec.Response,
		Source:     rec.Source,
		Error:      rec.Error,
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  rec.CreatedAt,
	}
	for _, s := range rec.Steps {
		out.Steps = append(out.Steps, QueryStep{
			Tool:     s.Invocation.ToolName,
			Argument: s.Invocation.Argument,
			Output:   s.Observation.Text,
			IsError:  s.Observation.IsError,
		})
	}
	return out
}

// QueryList is returned by GET /api/v1/queries.
type QueryList struct {
	Items []QueryRecord `json:"items"`
	Count int           `json:"count"`
}
