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
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if s.opts.Models == nil {
		writeJSON(w, http.StatusOK, map[string]any{"models": []string{}})
		return
	}
	models, err := s.opts.Models.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "list models: "+err.Error())
		return
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": names})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Metrics.Snapshot())
}

func (s *Server) handleMetricsRaw(w http.ResponseWriter, r *http.Request) {
	if s.opts.Metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics disabled")
		return
	}
	s.opts.Metrics.Handler().ServeHTTP(w, r)
}

type feedbackRequest struct {
	Task     string `json:"task"`
	Feedback string `json:"feedback"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Feedback != "positive" && req.Feedback != "negative" {
		writeError(w, http.StatusBadRequest, "feedback must be positive or negative")
		return
	}
	slog.Info("task feedback received", "task", req.Task, "feedback", req.Feedback)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"conversations": s.opts.Conversations.List()})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	s.opts.Conversations.Delete(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
