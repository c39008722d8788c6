package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(CheckFunc{CheckName: "db", Fn: func(context.Context) error { return errors.New("down") }})

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "liveness ignores dependencies")
}

func TestHealthHandler_Ready(t *testing.T) {
	h := NewHealthHandler(nil)
	h.RegisterCheck(CheckFunc{CheckName: "database", Fn: func(context.Context) error { return nil }})
	h.RegisterCheck(CheckFunc{CheckName: "redis", Fn: func(context.Context) error { return nil }})

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "pass", status.Checks["database"].Status)
	assert.Equal(t, "pass", status.Checks["redis"].Status)
}

func TestHealthHandler_NotReady(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(CheckFunc{CheckName: "database", Fn: func(context.Context) error { return nil }})
	h.RegisterCheck(CheckFunc{CheckName: "llm", Fn: func(context.Context) error { return errors.New("connection refused") }})

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["llm"].Status)
	assert.Equal(t, "connection refused", status.Checks["llm"].Message)
}

func TestHealthHandler_Version(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleVersion(BuildInfo{Version: "1.2.3", GitCommit: "abc"})(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info BuildInfo
	env := decodeEnvelope(t, w, &info)
	assert.True(t, env.Success)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc", info.GitCommit)
}
