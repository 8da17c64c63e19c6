// Package handlers exposes executor registration over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flowbase-io/flowbase/internal/node/app/service"
	"github.com/flowbase-io/flowbase/internal/node/domain/model"
	"github.com/flowbase-io/flowbase/internal/node/domain/repository"
	"github.com/flowbase-io/flowbase/internal/platform/response"
)

type ExecutorHandler struct {
	service *service.ExecutorService
}

func NewExecutorHandler(svc *service.ExecutorService) *ExecutorHandler {
	return &ExecutorHandler{service: svc}
}

// RegisterRoutes mounts the executor endpoints on the router.
func (h *ExecutorHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/executors", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/executors", h.List).Methods(http.MethodGet)
	r.HandleFunc("/executors/builtins", h.Builtins).Methods(http.MethodGet)
	r.HandleFunc("/executors/{type}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/executors/{type}", h.Delete).Methods(http.MethodDelete)
}

func (h *ExecutorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var ce model.CustomExecutor
	if err := json.NewDecoder(r.Body).Decode(&ce); err != nil {
		response.BadRequest(w, "invalid executor payload: "+err.Error())
		return
	}

	created, err := h.service.Register(r.Context(), &ce)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *ExecutorHandler) List(w http.ResponseWriter, r *http.Request) {
	executors, err := h.service.List(r.Context())
	if err != nil {
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, executors)
}

func (h *ExecutorHandler) Builtins(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.service.Builtins())
}

func (h *ExecutorHandler) Get(w http.ResponseWriter, r *http.Request) {
	ce, err := h.service.Get(r.Context(), mux.Vars(r)["type"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "executor not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, ce)
}

func (h *ExecutorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["type"]); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "executor not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}
