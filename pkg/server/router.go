// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", s.handleCreateTask)
		r.Get("/active", s.handleActiveTasks)
		r.Get("/history", s.handleTaskHistory)
		r.Get("/{taskID}", s.handleGetTask)
		r.Get("/{taskID}/stream", s.handleStreamTask)
		r.Post("/{taskID}/resume", s.handleResumeTask)
		r.Post("/{taskID}/cancel", s.handleCancelTask)
		r.Delete("/{taskID}", s.handleDeleteTask)
	})

	r.Get("/api/models", s.handleListModels)
	r.Get("/api/metrics", s.handleMetricsSummary)
	r.Get("/metrics", s.handleMetricsRaw)
	r.Post("/api/feedback", s.handleFeedback)

	r.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", s.handleListConversations)
		r.Delete("/{conversationID}", s.handleDeleteConversation)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// corsMiddleware adds permissive CORS headers by default, or the
// configured allow-list when one is set.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(s.opts.AllowedOrigins) == 0 {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range s.opts.AllowedOrigins {
				if allowed == origin || allowed == "*" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter only to capture the status
// code for metrics, and forwards Flush so SSE handlers underneath keep
// working.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		s.opts.Metrics.RecordHTTPRequest(r.Method, pattern, wrapped.status, time.Since(start))
	})
}

// loggingMiddleware logs requests without wrapping ResponseWriter, so it
// never interferes with http.Flusher on the SSE stream/resume routes.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
