package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/finagent/agent"
	"github.com/BaSui01/finagent/api"
	"github.com/BaSui01/finagent/types"
	"go.uber.org/zap"
)

// QueryService answers one question. *agent.Service implements it.
type QueryService interface {
	Query(ctx context.Context, in agent.QueryInput) (agent.Response, error)
}

// QueryHandler serves POST /query.
type QueryHandler struct {
	service   QueryService
	uploadDir string
	logger    *zap.Logger
}

// NewQueryHandler resolves request filenames inside uploadDir.
func NewQueryHandler(service QueryService, uploadDir string, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		service:   service,
		uploadDir: uploadDir,
		logger:    logger.With(zap.String("handler", "query")),
	}
}

// HandleQuery runs the agent.
//
//	200 {"response": "..."}
//	400 {"detail": "..."}              bad body, empty query, bad filename
//	404 {"detail": "File not found"}
//	503 {"detail": "..."}              all agent slots busy
//	500 {"detail": "Internal error: ..."}
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		WriteDetail(w, statusOf(err), err.Message)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteDetail(w, http.StatusBadRequest, "query is required")
		return
	}

	in := agent.QueryInput{Query: req.Query}
	if req.Filename != "" {
		path, ok := ResolveUpload(h.uploadDir, req.Filename)
		if !ok {
			WriteDetail(w, http.StatusBadRequest, "filename must be a plain file name")
			return
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			WriteDetail(w, http.StatusNotFound, "File not found")
			return
		}
		in.FilePath = path
	}

	resp, err := h.service.Query(r.Context(), in)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, api.QueryResponse(resp))
}

func (h *QueryHandler) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if te, ok := types.AsError(err); ok {
		switch status := statusOf(te); {
		case status == http.StatusServiceUnavailable:
			w.Header().Set("Retry-After", "5")
			WriteDetail(w, status, te.Message)
			return
		case status >= 400 && status < 500:
			WriteDetail(w, status, te.Message)
			return
		}
	}
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		h.logger.Info("client went away during query", zap.String("request_id", requestID(r)))
	} else {
		h.logger.Error("query failed", zap.Error(err), zap.String("request_id", requestID(r)))
	}
	WriteDetail(w, http.StatusInternalServerError, "Internal error: "+err.Error())
}

// ResolveUpload maps a client supplied file name to a path inside dir.
// Anything but a plain base name is rejected.
func ResolveUpload(dir, name string) (string, bool) {
	if name == "" || name == "." || name == ".." {
		return "", false
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || filepath.IsAbs(name) {
		return "", false
	}
	return filepath.Join(dir, name), true
}
