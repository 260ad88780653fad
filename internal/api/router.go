package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/chriszimbizi/study-buddy/internal/web"
)

func NewRouter(apiHandler *APIHandler, ui *web.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// All API routes live under /api
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", apiHandler.CreateSessionHandler)
		r.Get("/sessions", apiHandler.ListSessionsHandler)
		r.Get("/sessions/{sessionID}", apiHandler.GetSessionHandler)

		r.Post("/sessions/{sessionID}/documents", apiHandler.UploadDocumentHandler)
		r.Get("/sessions/{sessionID}/documents", apiHandler.ListDocumentsHandler)
		r.Delete("/sessions/{sessionID}/documents", apiHandler.ClearDocumentsHandler)

		r.Post("/sessions/{sessionID}/messages", apiHandler.PostMessageHandler)
		r.Get("/sessions/{sessionID}/messages", apiHandler.GetTranscriptHandler)
	})

	// Embedded UI
	if ui != nil {
		r.Get("/", ui.Index)
		r.Get("/static/*", ui.Static)
	}

	return r
}

// requestLogger is chi's middleware.Logger shape with zap as the sink.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
