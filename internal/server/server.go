// Package server is the HTTP API: authentication, interface and peer CRUD,
// settings, transfer history, and operational endpoints, all JSON under /api.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wg-console/internal/audit"
	"wg-console/internal/auth"
	"wg-console/internal/metrics"
	"wg-console/internal/peermeta"
	"wg-console/internal/settings"
	"wg-console/internal/stats"
	"wg-console/internal/system"
	"wg-console/internal/update"
	"wg-console/internal/vpn"
)

const requestTimeout = 60 * time.Second

// Server handles HTTP requests on top of the domain services.
type Server struct {
	auth     *auth.Service
	engine   *vpn.Manager
	meta     *peermeta.Store
	settings *settings.Store
	sampler  *stats.Sampler
	audit    *audit.Recorder
	backend  system.Backend
	updates  *update.Checker

	started time.Time
}

// New creates an HTTP server over the given services.
func New(authService *auth.Service, engine *vpn.Manager, meta *peermeta.Store, settingsStore *settings.Store, sampler *stats.Sampler, auditLog *audit.Recorder, backend system.Backend, updates *update.Checker) *Server {
	return &Server{
		auth:     authService,
		engine:   engine,
		meta:     meta,
		settings: settingsStore,
		sampler:  sampler,
		audit:    auditLog,
		backend:  backend,
		updates:  updates,
		started:  time.Now(),
	}
}

// Router constructs the http.Handler with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Get("/setup", s.handleSetupStatus)
			ar.Post("/setup", s.handleSetup)
			ar.Post("/login", s.handleLogin)
			ar.Post("/refresh", s.handleRefresh)
			ar.Post("/logout", s.handleLogout)

			ar.Group(func(pr chi.Router) {
				pr.Use(s.auth.RequireAuth)
				pr.Get("/me", s.handleMe)
				pr.Post("/password", s.handleChangePassword)
			})
		})

		// The QR token inside the body is the credential: phones hitting
		// this endpoint have no session.
		api.Post("/qr-image", s.handleQRImage)

		api.Group(func(pr chi.Router) {
			pr.Use(s.auth.RequireAuth)

			pr.Route("/interfaces", func(ir chi.Router) {
				ir.Get("/", s.handleListInterfaces)
				ir.Post("/", s.handleCreateInterface)

				ir.Route("/{name}", func(nr chi.Router) {
					nr.Get("/", s.handleGetInterface)
					nr.Patch("/", s.handleUpdateInterface)
					nr.Delete("/", s.handleDeleteInterface)
					nr.Post("/up", s.handleInterfaceUp)
					nr.Post("/down", s.handleInterfaceDown)
					nr.Get("/stats", s.handleInterfaceStats)
					nr.Get("/history", s.handleInterfaceHistory)

					nr.Route("/peers", func(peers chi.Router) {
						peers.Get("/", s.handleListPeers)
						peers.Post("/", s.handleAddPeer)
						peers.Get("/next-ip", s.handleNextIP)

						peers.Route("/{publicKey}", func(kr chi.Router) {
							kr.Get("/", s.handleGetPeer)
							kr.Patch("/", s.handleUpdatePeer)
							kr.Delete("/", s.handleRemovePeer)
							kr.Get("/config", s.handlePeerConfig)
							kr.Post("/qr", s.handlePeerQRToken)
						})
					})
				})
			})

			pr.Get("/settings", s.handleGetSettings)
			pr.Patch("/settings", s.handleUpdateSettings)
			pr.Get("/settings/retention", s.handleGetRetention)
			pr.Patch("/settings/retention", s.handleUpdateRetention)
			pr.Get("/settings/timezone", s.handleGetTimezone)
			pr.Patch("/settings/timezone", s.handleUpdateTimezone)

			pr.Get("/audit", s.handleAuditLog)
			pr.Get("/export", s.handleExport)
			pr.Get("/system", s.handleSystemInfo)
			pr.Get("/system/update", s.handleUpdateCheck)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
