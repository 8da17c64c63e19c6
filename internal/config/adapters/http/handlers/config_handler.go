// Package handlers exposes config CRUD over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flowbase-io/flowbase/internal/config/app/service"
	"github.com/flowbase-io/flowbase/internal/config/domain/model"
	"github.com/flowbase-io/flowbase/internal/config/domain/repository"
	"github.com/flowbase-io/flowbase/internal/platform/response"
)

type ConfigHandler struct {
	service *service.ConfigService
}

func NewConfigHandler(svc *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{service: svc}
}

// RegisterRoutes mounts the config endpoints on the router.
func (h *ConfigHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/configs", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/configs", h.List).Methods(http.MethodGet)
	r.HandleFunc("/configs/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/configs/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/configs/{id}", h.Delete).Methods(http.MethodDelete)
}

func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg model.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		response.BadRequest(w, "invalid config payload: "+err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), &cfg)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "config not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, cfg)
}

func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	configs, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, configs)
}

func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg model.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		response.BadRequest(w, "invalid config payload: "+err.Error())
		return
	}
	cfg.ID = mux.Vars(r)["id"]

	updated, err := h.service.Update(r.Context(), &cfg)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "config not found")
			return
		}
		response.BadRequest(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "config not found")
			return
		}
		response.Internal(w, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}
