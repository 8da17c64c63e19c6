// Package handlers exposes workflow CRUD over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flowbase-io/flowbase/internal/platform/response"
	"github.com/flowbase-io/flowbase/internal/workflow/app/service"
	"github.com/flowbase-io/flowbase/internal/workflow/domain/model"
	"github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
)

type WorkflowHandler struct {
	service *service.WorkflowService
}

func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// RegisterRoutes mounts the workflow endpoints on the router.
func (h *WorkflowHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/workflows", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/workflows", h.List).Methods(http.MethodGet)
	r.HandleFunc("/workflows/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/workflows/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/workflows/{id}", h.Delete).Methods(http.MethodDelete)
}

func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var wf model.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		response.BadRequest(w, "invalid workflow payload: "+err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), &wf)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	wf, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "workflow not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	workflows, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, workflows)
}

func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	var wf model.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		response.BadRequest(w, "invalid workflow payload: "+err.Error())
		return
	}
	wf.ID = mux.Vars(r)["id"]

	updated, err := h.service.Update(r.Context(), &wf)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "workflow not found")
			return
		}
		response.BadRequest(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "workflow not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
