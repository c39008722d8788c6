package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BaSui01/finagent/agent"
	"github.com/BaSui01/finagent/llm/tools"
	"github.com/BaSui01/finagent/llm/tools/builtin"
	"github.com/BaSui01/finagent/testutil"
	"github.com/BaSui01/finagent/testutil/fixtures"
	"github.com/BaSui01/finagent/testutil/mocks"
	"github.com/BaSui01/finagent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQueryService struct {
	got  agent.QueryInput
	resp agent.Response
	err  error
}

func (f *fakeQueryService) Query(_ context.Context, in agent.QueryInput) (agent.Response, error) {
	f.got = in
	return f.resp, f.err
}

func postQuery(h *QueryHandler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.HandleQuery(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))
	return w
}

func detailOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var d struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return d.Detail
}

func TestQueryHandler_Success(t *testing.T) {
	svc := &fakeQueryService{resp: agent.Response{Response: "The current price of AAPL is $175.2 (demo)."}}
	h := NewQueryHandler(svc, t.TempDir(), zap.NewNop())

	w := postQuery(h, `{"query":"price of aapl?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"The current price of AAPL is $175.2 (demo)."}`, w.Body.String())
	assert.Equal(t, "price of aapl?", svc.got.Query)
	assert.Empty(t, svc.got.FilePath)
}

func TestQueryHandler_WithUploadedFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "data.csv", "a,b\n1,2\n")
	svc := &fakeQueryService{resp: agent.Response{Response: "ok"}}
	h := NewQueryHandler(svc, dir, nil)

	w := postQuery(h, `{"query":"summarize","filename":"data.csv"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, path, svc.got.FilePath)
}

func TestQueryHandler_ClientErrors(t *testing.T) {
	dir := t.TempDir()
	h := NewQueryHandler(&fakeQueryService{}, dir, zap.NewNop())

	tests := []struct {
		name, body string
		status     int
		detail     string
	}{
		{"bad json", `{"query":`, http.StatusBadRequest, "invalid JSON body"},
		{"empty query", `{"query":"   "}`, http.StatusBadRequest, "query is required"},
		{"path in filename", `{"query":"q","filename":"../secret.csv"}`, http.StatusBadRequest, "filename must be a plain file name"},
		{"missing file", `{"query":"q","filename":"nope.csv"}`, http.StatusNotFound, "File not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postQuery(h, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.detail, detailOf(t, w))
		})
	}
}

func TestQueryHandler_AgentFailure(t *testing.T) {
	svc := &fakeQueryService{err: errors.New("model crashed")}
	h := NewQueryHandler(svc, t.TempDir(), zap.NewNop())

	w := postQuery(h, `{"query":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal error: model crashed", detailOf(t, w))
}

func TestQueryHandler_Busy(t *testing.T) {
	svc := &fakeQueryService{err: types.NewError(types.ErrAgentBusy, "agent is busy, try again later").
		WithHTTPStatus(http.StatusServiceUnavailable)}
	h := NewQueryHandler(svc, t.TempDir(), zap.NewNop())

	w := postQuery(h, `{"query":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Equal(t, "agent is busy, try again later", detailOf(t, w))
}

// Drives the real agent service with a scripted model to check the wire shape
// end to end.
func TestQueryHandler_WithAgentService(t *testing.T) {
	reg := tools.NewRegistry(zap.NewNop())
	require.NoError(t, builtin.RegisterAll(reg, builtin.Dependencies{Files: builtin.FileConfig{UploadDir: t.TempDir()}}))
	reg.Freeze()
	dispatcher := tools.NewDispatcher(reg, zap.NewNop())

	provider := mocks.NewScriptedProvider(
		fixtures.Action("I need the price", "Stock Price", "aapl"),
		fixtures.FinalAnswer("I know it", "AAPL trades at $175.2."),
	)
	exec, err := agent.NewExecutor(provider, dispatcher, agent.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	svc := agent.NewService(exec, agent.ServiceConfig{MaxConcurrentRuns: 1}, zap.NewNop())

	w := postQuery(NewQueryHandler(svc, t.TempDir(), zap.NewNop()), `{"query":"What is AAPL at?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"AAPL trades at $175.2."}`, w.Body.String())
	assert.Len(t, provider.Calls(), 2)
}

func TestQueryHandler_FileNotFoundIsNotADirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.csv"), 0o700))
	h := NewQueryHandler(&fakeQueryService{}, dir, zap.NewNop())

	w := postQuery(h, `{"query":"q","filename":"folder.csv"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
