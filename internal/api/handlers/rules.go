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

type RulesHandler struct {
	store *models.RuleStore
}

func NewRulesHandler(store *models.RuleStore) *RulesHandler {
	return &RulesHandler{store: store}
}

func (h *RulesHandler) Routes(r chi.Router) {
	r.Route("/users/{userID}/rules", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{ruleID}", h.Update)
		r.Delete("/{ruleID}", h.Delete)
	})
}

func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	rules, err := h.store.ListForUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Int64("userID", userID).Msg("failed to list rules")
		RespondError(w, http.StatusInternalServerError, "Failed to list rules")
		return
	}

	if rules == nil {
		rules = []*models.Rule{}
	}
	RespondJSON(w, http.StatusOK, rules)
}

func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	rule.UserID = userID

	created, err := h.store.Create(r.Context(), &rule)
	if err != nil {
		log.Error().Err(err).Int64("userID", userID).Msg("failed to create rule")
		RespondError(w, http.StatusInternalServerError, "Failed to create rule")
		return
	}

	RespondJSON(w, http.StatusCreated, created)
}

func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	ruleID, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	rule.ID = ruleID
	rule.UserID = userID

	updated, err := h.store.Update(r.Context(), &rule)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			RespondError(w, http.StatusNotFound, "Rule not found")
			return
		}
		log.Error().Err(err).Int64("ruleID", ruleID).Msg("failed to update rule")
		RespondError(w, http.StatusInternalServerError, "Failed to update rule")
		return
	}

	RespondJSON(w, http.StatusOK, updated)
}

func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ruleID, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	if err := h.store.Delete(r.Context(), ruleID); err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			RespondError(w, http.StatusNotFound, "Rule not found")
			return
		}
		log.Error().Err(err).Int64("ruleID", ruleID).Msg("failed to delete rule")
		RespondError(w, http.StatusInternalServerError, "Failed to delete rule")
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}
