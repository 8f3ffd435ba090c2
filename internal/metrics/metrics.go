// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes Prometheus counters for the automation engine on an
// optional separate listener.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Collector holds the engine's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	PassesTotal         prometheus.Counter
	RulesEvaluatedTotal prometheus.Counter
	ActionsTotal        prometheus.Counter
	ActionFailuresTotal prometheus.Counter
	UserFailuresTotal   prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,
		PassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boxarr_automation_passes_total",
			Help: "Total number of scheduler passes started.",
		}),
		RulesEvaluatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boxarr_automation_rules_evaluated_total",
			Help: "Total number of rule evaluations.",
		}),
		ActionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boxarr_automation_actions_total",
			Help: "Total number of successfully dispatched actions.",
		}),
		ActionFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boxarr_automation_action_failures_total",
			Help: "Total number of failed action dispatches.",
		}),
		UserFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boxarr_automation_user_failures_total",
			Help: "Total number of per-user pass failures.",
		}),
	}

	registry.MustRegister(
		c.PassesTotal,
		c.RulesEvaluatedTotal,
		c.ActionsTotal,
		c.ActionFailuresTotal,
		c.UserFailuresTotal,
	)

	return c
}

// Server serves the /metrics endpoint on its own port.
type Server struct {
	collector *Collector
	host      string
	port      int
}

func NewServer(collector *Collector, host string, port int) *Server {
	return &Server{
		collector: collector,
		host:      host,
		port:      port,
	}
}

func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.collector.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Info().Str("addr", addr).Msg("Starting metrics server")

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
