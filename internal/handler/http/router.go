package http

import (
	"log/slog"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/handler/http/middleware"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	Logger         *slog.Logger
	LogLevel       slog.Level
	AllowedOrigins []string
	// ReportTimeout bounds report generation requests.
	ReportTimeout time.Duration
}

func NewRouter(JWTService jwt.Service, payrollHandler PayrollHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 5 * time.Minute
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(opts.Logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService))

			writers := middleware.RequireRole(jwt.RoleOwner, jwt.RoleManager)

			r.Route("/salary-reports", func(r chi.Router) {
				r.With(writers, chiMiddleware.AllowContentType("application/json"), chiMiddleware.Timeout(opts.ReportTimeout)).
					Post("/", payrollHandler.GenerateReport)
				r.Get("/", payrollHandler.ListReports)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", payrollHandler.GetReport)
					r.Get("/export", payrollHandler.ExportReport)
					r.With(writers, chiMiddleware.AllowContentType("application/json")).
						Patch("/items/{itemId}", payrollHandler.UpdateLineItem)
				})
			})
		})
	})
	return r
}
