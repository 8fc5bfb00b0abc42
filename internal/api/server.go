// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the watchdog over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/petwatch/internal/api/middleware"
	"github.com/ManuGH/petwatch/internal/health"
	"github.com/ManuGH/petwatch/internal/profile"
	"github.com/ManuGH/petwatch/internal/watchdog"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProfileSource provides the current contact profile.
type ProfileSource interface {
	Snapshot() (profile.Profile, bool)
}

// Config controls the HTTP surface.
type Config struct {
	Version        string
	RateLimit      int
	RateWindow     time.Duration
	TracingService string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Checkers are added to the built-in readiness probes.
	Checkers []health.Checker
}

// Server serves the watch API.
type Server struct {
	cfg      Config
	machine  *watchdog.Machine
	profiles ProfileSource
	validate *validator.Validate
	health   *health.Manager
	router   http.Handler
}

// New builds the server and its routes. profiles may be nil.
func New(cfg Config, machine *watchdog.Machine, profiles ProfileSource) *Server {
	s := &Server{
		cfg:      cfg,
		machine:  machine,
		profiles: profiles,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		health:   health.NewManager(cfg.Version),
	}
	s.registerChecks(s.health)
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Probes stay outside the limiter.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
		r.Handle("/metrics", s.metricsHandler())
	})

	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
			TracingService:        s.cfg.TracingService,
			EnableLogging:         true,
			RateLimit:             s.cfg.RateLimit,
			RateWindow:            s.cfg.RateWindow,
		})
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/watch", s.handleStatus)
			r.Post("/watch", s.handleArm)
			r.Post("/watch/check-in", s.handleCheckIn)
			r.Post("/watch/cancel", s.handleCancel)
			r.Post("/events", s.handleEvent)
		})
	})
	return r
}

func (s *Server) metricsHandler() http.Handler {
	if s.cfg.Gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})
}
