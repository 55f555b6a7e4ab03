// Package httpapi is the REST surface: the request gates, the issuance and
// user endpoints, and scoped resource routes over the catalog.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/catalog"
	"royaltyhub.org/internal/obs"
	"royaltyhub.org/internal/ratelimit"
)

// ReadyProbe reports whether dependencies can serve traffic.
type ReadyProbe interface {
	Check(ctx context.Context) error
}

// PingProbe adapts anything with a Ping method, such as a docstore.Store.
type PingProbe struct {
	Target interface{ Ping(ctx context.Context) error }
}

func (p PingProbe) Check(ctx context.Context) error {
	if p.Target == nil {
		return nil
	}
	return p.Target.Ping(ctx)
}

// ResetNotifier delivers a password reset token to its owner.
type ResetNotifier func(ctx context.Context, email, token string) error

// Options wires the API. ApplicationToken, Auth and Catalog are required.
type Options struct {
	ApplicationToken string
	Auth             *auth.Service
	Catalog          *catalog.Service
	Limiter          ratelimit.Limiter
	Ready            ReadyProbe
	Notifier         ResetNotifier
	Version          string

	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the peer
	// address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	CORSOrigins  []string
	RateBurst    int
	RatePerSec   float64
	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	opts   Options
	router chi.Router
}

func New(opts Options) (*API, error) {
	if opts.ApplicationToken == "" {
		return nil, errors.New("httpapi: application token is required")
	}
	if opts.Auth == nil || opts.Catalog == nil {
		return nil, errors.New("httpapi: auth and catalog services are required")
	}
	if opts.Ready == nil {
		opts.Ready = PingProbe{}
	}
	if opts.Notifier == nil {
		opts.Notifier = logResetRequest
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	a := &API{opts: opts}
	a.router = a.routes()
	return a, nil
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler { return a.router }

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if a.opts.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(Recovery)
	r.Use(obs.Instrument)
	r.Use(RequestLogger)
	r.Use(AuditRequestID)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", applicationTokenParam, userTokenParam},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:         300,
	}))

	// Ops endpoints stay outside both gates.
	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", obs.Handler())

	r.Group(func(r chi.Router) {
		if a.opts.RateBurst > 0 && a.opts.RatePerSec > 0 {
			r.Use(RateLimit(a.opts.RateBurst, a.opts.RatePerSec))
		}
		r.Use(MaxBodyBytes(a.opts.MaxBodyBytes))
		r.Use(ApplicationGate(a.opts.ApplicationToken))
		r.Use(UserGate(a.opts.Auth.Codec()))

		r.Route(issuancePath, func(r chi.Router) {
			r.Post("/", a.authenticate)
			r.Get("/test_token", a.testToken)
			r.Post("/forgot_password", a.forgotPassword)
			r.Post("/reset_password", a.resetPassword)
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/me", a.me)
			r.Post("/", a.createUser)
			r.Delete("/{id}", a.deleteUser)
		})
		r.Route("/{kind}", func(r chi.Router) {
			r.Get("/", a.listResources)
			r.Post("/", a.createResource)
			r.Get("/{id}", a.getResource)
			r.Put("/{id}", a.updateResource)
			r.Patch("/{id}", a.updateResource)
			r.Delete("/{id}", a.deleteResource)
		})
	})
	return r
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": obs.ServiceName,
		"version": a.opts.Version,
	})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.opts.Ready.Check(ctx); err != nil {
		obs.SetReady(false)
		obs.Logger().Warn().Err(err).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func logResetRequest(ctx context.Context, email, _ string) error {
	obs.Logger().Info().Str("email", email).Msg("password reset requested; no notifier configured")
	return nil
}
