package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/BaSui01/finagent/agent"
	"github.com/BaSui01/finagent/api"
	"github.com/BaSui01/finagent/types"
	"go.uber.org/zap"
)

// ErrHistoryNotFound must be returned (or wrapped) by HistoryReader.Get for
// a missing id. The database store's not-found error is mapped to it at
// wiring time.
var ErrHistoryNotFound = errors.New("query record not found")

// HistoryReader reads the query history.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]agent.Record, error)
	Get(ctx context.Context, id string) (agent.Record, error)
}

// HistoryHandler serves the /api/v1/queries endpoints.
type HistoryHandler struct {
	reader   HistoryReader
	notFound error
	logger   *zap.Logger
}

// NewHistoryHandler uses notFound to recognise a missing record; nil means
// ErrHistoryNotFound.
func NewHistoryHandler(reader HistoryReader, notFound error, logger *zap.Logger) *HistoryHandler {
	if notFound == nil {
		notFound = ErrHistoryNotFound
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{reader: reader, notFound: notFound, logger: logger.With(zap.String("handler", "history"))}
}

// HandleList serves GET /api/v1/queries?limit=N, newest first.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			WriteError(w, r, types.NewError(types.ErrInvalidRequest, "limit must be a positive integer"), h.logger)
			return
		}
		limit = n
	}

	recs, err := h.reader.List(r.Context(), limit)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "could not read query history").WithCause(err), h.logger)
		return
	}
	out := api.QueryList{Items: make([]api.QueryRecord, 0, len(recs))}
	for _, rec := range recs {
		out.Items = append(out.Items, api.NewQueryRecord(rec))
	}
	out.Count = len(out.Items)
	WriteSuccess(w, r, out)
}

// HandleGet serves GET /api/v1/queries/{id}.
func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "id is required"), h.logger)
		return
	}
	rec, err := h.reader.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, h.notFound) {
			WriteError(w, r, types.NewError(types.ErrNotFound, "query "+id+" not found"), h.logger)
			return
		}
		WriteError(w, r, types.NewError(types.ErrInternalError, "could not read query history").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, r, api.NewQueryRecord(rec))
}
