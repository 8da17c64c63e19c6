// Package handlers exposes the execution API, including the SSE stream.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flowbase-io/flowbase/internal/execution/app/service"
	"github.com/flowbase-io/flowbase/internal/execution/domain/repository"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	"github.com/flowbase-io/flowbase/internal/platform/response"
	wfrepo "github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
)

type ExecutionHandler struct {
	service *service.ExecutionService
	log     logger.Logger
}

func NewExecutionHandler(svc *service.ExecutionService, log logger.Logger) *ExecutionHandler {
	return &ExecutionHandler{service: svc, log: log}
}

// RegisterRoutes mounts the execution endpoints on the router.
func (h *ExecutionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/workflows/{id}/execute", h.Execute).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{id}/executions", h.ListByWorkflow).Methods(http.MethodGet)
	r.HandleFunc("/executions/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/executions/{id}/nodes", h.ListNodes).Methods(http.MethodGet)
}

// Execute runs a workflow. stream=true (body or query) switches the
// response to an SSE event stream.
func (h *ExecutionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	workflowID := mux.Vars(r)["id"]

	var req service.RunRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid execution request: "+err.Error())
			return
		}
	}
	if r.URL.Query().Get("stream") == "true" {
		req.Stream = true
	}

	if req.Stream {
		h.stream(w, r, workflowID, req)
		return
	}

	exec, err := h.service.Run(r.Context(), workflowID, req)
	if err != nil {
		if errors.Is(err, wfrepo.ErrNotFound) {
			response.NotFound(w, "workflow not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, exec)
}

// stream writes engine events as data: <json> lines until the stream
// closes.
func (h *ExecutionHandler) stream(w http.ResponseWriter, r *http.Request, workflowID string, req service.RunRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Internal(w, "streaming is not supported by this connection")
		return
	}

	events, err := h.service.RunStream(r.Context(), workflowID, req)
	if err != nil {
		if errors.Is(err, wfrepo.ErrNotFound) {
			response.NotFound(w, "workflow not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			h.log.Error("failed to encode stream event", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	exec, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "execution not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, exec)
}

func (h *ExecutionHandler) ListByWorkflow(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	executions, err := h.service.List(r.Context(), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, executions)
}

func (h *ExecutionHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.ListNodes(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, nodes)
}
