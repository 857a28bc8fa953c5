/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the browser client

ROUTE GROUPS:
  /api/records/*        Record CRUD and attachments
  /api/dashboard        Dashboard view
  /api/reports/*        Division-wise report
  /api/selection        Per-session bulk selection
  /api/bulk             Bulk update
  /api/import/*         Two-phase spreadsheet import
  /api/export/*         Excel, template and PDF downloads
  /api/backup*          Backup download/restore
  /api/admin/*          Destructive operations
  /metrics              Prometheus metrics
  /healthz              Liveness and backend reachability

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultCORSOrigins is used when no origins are configured.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins ...string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", sessionHeader, "X-User-Name"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Record routes
		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Post("/", h.CreateRecord)
			r.Get("/{id}", h.GetRecord)
			r.Put("/{id}", h.UpdateRecord)
			r.Delete("/{id}", h.DeleteRecord)
			r.Get("/{id}/attachments", h.ListAttachments)
			r.Post("/{id}/attachments", h.UploadAttachment)
			r.Get("/{id}/attachments/{attachmentID}", h.DownloadAttachment)
		})
		r.Get("/attachments/counts", h.AttachmentCounts)

		// View routes
		r.Get("/dashboard", h.Dashboard)
		r.Get("/reports/divisions", h.DivisionReport)
		r.Get("/quality", h.Quality)
		r.Get("/divisions", h.Divisions)
		r.Get("/activity", h.ListActivity)

		// Selection and bulk routes
		r.Get("/selection", h.GetSelection)
		r.Post("/selection", h.UpdateSelection)
		r.Post("/bulk", h.BulkUpdate)

		// Import routes
		r.Route("/import", func(r chi.Router) {
			r.Post("/", h.UploadImport)
			r.Post("/{token}/confirm", h.ConfirmImport)
			r.Delete("/{token}", h.CancelImport)
		})

		// Export routes
		r.Route("/export", func(r chi.Router) {
			r.Get("/excel", h.ExportExcel)
			r.Get("/template", h.ExportTemplate)
			r.Get("/pdf/{kind}", h.ExportPDF)
		})

		// Backup routes
		r.Get("/backup", h.DownloadBackup)
		r.Post("/backup/restore", h.RestoreBackup)
		r.Get("/backups", h.ListStoredBackups)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/clear", h.ClearAll)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.Healthz)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
