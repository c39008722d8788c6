package handlers

import (
	"net/http"

	"github.com/BaSui01/finagent/api"
	"github.com/BaSui01/finagent/llm/tools"
	"github.com/BaSui01/finagent/types"
	"go.uber.org/zap"
)

// ToolsHandler lists and invokes registered tools.
type ToolsHandler struct {
	dispatcher *tools.Dispatcher
	logger     *zap.Logger
}

func NewToolsHandler(dispatcher *tools.Dispatcher, logger *zap.Logger) *ToolsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolsHandler{dispatcher: dispatcher, logger: logger.With(zap.String("handler", "tools"))}
}

// HandleList serves GET /api/v1/tools in registration order.
func (h *ToolsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	specs := h.dispatcher.Registry().Specs()
	out := make([]api.ToolInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, api.ToolInfo{Name: s.Name, Description: s.Description})
	}
	WriteSuccess(w, r, out)
}

// HandleInvoke serves POST /api/v1/tools/invoke. Tool failures are part of
// the observation, so only an unknown tool is an HTTP error.
func (h *ToolsHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	var req api.InvokeToolRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	name := req.Tool
	if name == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "tool is required"), h.logger)
		return
	}
	if _, err := h.dispatcher.Registry().Lookup(name); err != nil {
		WriteError(w, r, tools.ToTypesError(err), h.logger)
		return
	}

	obs := h.dispatcher.Dispatch(r.Context(), tools.Invocation{ToolName: name, Argument: req.Argument})
	WriteSuccess(w, r, api.InvokeToolResponse{Tool: name, Output: obs.Text, IsError: obs.IsError})
}
