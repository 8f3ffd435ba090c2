// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/boxarr/boxarr/internal/models"
)

type UsersHandler struct {
	store *models.UserStore
}

func NewUsersHandler(store *models.UserStore) *UsersHandler {
	return &UsersHandler{store: store}
}

func (h *UsersHandler) Routes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)

		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/api-key", h.UpdateAPIKey)
			r.Put("/active", h.SetActive)
			r.Delete("/", h.Delete)
		})
	})
}

type createUserRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"apiKey"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		RespondError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	if users == nil {
		users = []*models.User{}
	}
	RespondJSON(w, http.StatusOK, users)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Name == "" || req.APIKey == "" {
		RespondError(w, http.StatusBadRequest, "Name and API key are required")
		return
	}

	user, err := h.store.Create(r.Context(), req.Name, req.APIKey)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("failed to create user")
		RespondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	RespondJSON(w, http.StatusCreated, user)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.store.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int64("userID", userID).Msg("failed to get user")
		RespondError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}

	RespondJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) UpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.APIKey == "" {
		RespondError(w, http.StatusBadRequest, "API key is required")
		return
	}

	if err := h.store.UpdateAPIKey(r.Context(), userID, req.APIKey); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int64("userID", userID).Msg("failed to update API key")
		RespondError(w, http.StatusInternalServerError, "Failed to update API key")
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}

func (h *UsersHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.store.SetActiveState(r.Context(), userID, req.Active); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int64("userID", userID).Msg("failed to update user state")
		RespondError(w, http.StatusInternalServerError, "Failed to update user state")
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.store.Delete(r.Context(), userID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int64("userID", userID).Msg("failed to delete user")
		RespondError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}
