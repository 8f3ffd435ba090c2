// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/boxarr/boxarr/internal/automation"
)

type AutomationHandler struct {
	service *automation.Service
}

func NewAutomationHandler(service *automation.Service) *AutomationHandler {
	return &AutomationHandler{service: service}
}

func (h *AutomationHandler) Routes(r chi.Router) {
	r.Route("/automation", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/run", h.Run)
	})
}

func (h *AutomationHandler) Status(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.Status())
}

// Run triggers a pass in the background so the request returns immediately;
// outcomes land in the execution log like any scheduled pass. The pass runs
// on a detached context so it outlives the request.
func (h *AutomationHandler) Run(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.service.RunPass(context.Background()); err != nil {
			log.Error().Err(err).Msg("manual automation pass failed")
		}
	}()

	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
