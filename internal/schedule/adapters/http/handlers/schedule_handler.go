// Package handlers exposes schedule CRUD over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flowbase-io/flowbase/internal/platform/response"
	"github.com/flowbase-io/flowbase/internal/schedule/app/service"
	"github.com/flowbase-io/flowbase/internal/schedule/domain/model"
	"github.com/flowbase-io/flowbase/internal/schedule/domain/repository"
)

type ScheduleHandler struct {
	service *service.ScheduleService
}

func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// RegisterRoutes mounts the schedule endpoints on the router.
func (h *ScheduleHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/schedules", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/schedules", h.List).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/schedules/{id}", h.Delete).Methods(http.MethodDelete)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var sched model.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		response.BadRequest(w, "invalid schedule payload: "+err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), &sched)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	sched, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "schedule not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, sched)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	schedules, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, schedules)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var sched model.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		response.BadRequest(w, "invalid schedule payload: "+err.Error())
		return
	}
	sched.ID = mux.Vars(r)["id"]

	updated, err := h.service.Update(r.Context(), &sched)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "schedule not found")
			return
		}
		response.BadRequest(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "schedule not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}
