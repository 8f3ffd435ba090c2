// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/boxarr/boxarr/internal/models"
)

type ExecutionsHandler struct {
	store *models.ExecutionStore
}

func NewExecutionsHandler(store *models.ExecutionStore) *ExecutionsHandler {
	return &ExecutionsHandler{store: store}
}

func (h *ExecutionsHandler) Routes(r chi.Router) {
	r.Get("/users/{userID}/executions", h.List)
}

func (h *ExecutionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.store.ListForUser(r.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Int64("userID", userID).Msg("failed to list executions")
		RespondError(w, http.StatusInternalServerError, "Failed to list executions")
		return
	}

	if records == nil {
		records = []*models.ExecutionRecord{}
	}
	RespondJSON(w, http.StatusOK, records)
}
