package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kailas-cloud/storyrag/internal/metrics"
)

// Routes builds the router. /health and /metrics sit outside /api/v1 and skip auth.
func (s *Server) Routes(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.GetStats)
		r.Get("/usage", s.GetUsage)
		r.Post("/sessions", s.CreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Get("/documents", s.ListDocuments)
			r.Post("/documents", s.UploadDocument)
			r.Post("/documents/text", s.PasteDocument)
			r.Delete("/documents/{documentID}", s.DeleteDocument)
			r.Post("/questions", s.AskQuestion)
		})
	})
	return r
}
