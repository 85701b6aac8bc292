package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"roadwatch/internal/api/handlers/http/admin"
	"roadwatch/internal/api/handlers/http/public"
	"roadwatch/internal/api/handlers/http/system"
	"roadwatch/internal/config"
	"roadwatch/internal/middleware"
	"roadwatch/internal/service"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, svc *service.Service, sweeper admin.Sweeper, deps map[string]system.Pinger) *Server {
	publicHandler := public.NewHandler(logger, svc.Engine, svc.Incidents, svc.Incidents, svc.Ledger, cfg.Http.MaxUploadBytes)
	adminHandler := admin.NewHandler(logger, svc.Incidents, svc.Stats, sweeper, svc.Ledger)
	systemHandler := system.NewHandler(logger, deps)

	r := InitRouter(ctx, cfg, adminHandler, publicHandler, systemHandler, logger)

	return &Server{
		logger: logger,
		router: r,
		cfg:    *cfg,
	}
}

func InitRouter(ctx context.Context, cfg *config.Config, adminHandler *admin.Handler, publicHandler *public.Handler, systemHandler *system.Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)

	r.Route("/api/v1", func(api chi.Router) {
		// ADMIN
		api.Route("/admin", func(ar chi.Router) {
			ar.Use(middleware.APIKeyMiddleware(cfg.APIKey))
			ar.Use(middleware.Limit(ctx, cfg.RateLimit.AdminRPS, cfg.RateLimit.AdminBurst, 10*time.Minute, logger))

			ar.Get("/stats", adminHandler.AdminStats)
			ar.Post("/sweep", adminHandler.AdminSweep)
			ar.Get("/incidents", adminHandler.AdminIncidentList)
			ar.Put("/users/{id}", adminHandler.AdminProfileSync)
		})

		// PUBLIC
		api.Group(func(pr chi.Router) {
			pr.Use(middleware.Limit(ctx, cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst, 5*time.Minute, logger))

			pr.Route("/incidents", func(ir chi.Router) {
				ir.Post("/", publicHandler.ReportIncident)
				ir.Get("/", publicHandler.ListActive)

				ir.Route("/{id}", func(rr chi.Router) {
					rr.Get("/", publicHandler.GetIncident)
					rr.Get("/comments", publicHandler.ListComments)
					rr.Post("/comments", publicHandler.AddComment)
					rr.Post("/like", publicHandler.Like)
					rr.Post("/photos", publicHandler.UploadIncidentPhoto)
				})
			})

			pr.Post("/uploads", publicHandler.UploadReportPhoto)
			pr.Get("/users/{id}/profile", publicHandler.GetProfile)
		})

		// SYSTEM
		api.Get("/health", systemHandler.SystemHealth)
		api.Get("/ready", systemHandler.SystemReady)
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
