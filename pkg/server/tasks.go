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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kforge/codeforge/pkg/stage"
)

// createTaskRequest is the wire shape of POST /api/tasks, matching the
// option names spec.md §6 enumerates.
type createTaskRequest struct {
	Task    string `json:"task"`
	Options struct {
		Model                  string  `json:"model"`
		Temperature            float64 `json:"temperature"`
		TopP                   float64 `json:"top_p"`
		MaxIterations          int     `json:"max_iterations"`
		DisableWebSearch       bool    `json:"disable_web_search"`
		Mode                   string  `json:"mode"`
		MaxTokens              int     `json:"max_tokens"`
		QualityThreshold       float64 `json:"quality_threshold"`
		RAGSimilarityThreshold float64 `json:"rag_similarity_threshold"`
		WebSearchMaxResults    int     `json:"web_search_max_results"`
	} `json:"options"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Task == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}

	task := stage.Task{
		Prompt:    req.Task,
		CreatedAt: time.Now(),
		Options: stage.Options{
			Model:                  req.Options.Model,
			Temperature:            req.Options.Temperature,
			TopP:                   req.Options.TopP,
			MaxIterations:          req.Options.MaxIterations,
			DisableWebSearch:       req.Options.DisableWebSearch,
			Mode:                   stage.Mode(req.Options.Mode),
			MaxTokens:              req.Options.MaxTokens,
			QualityThreshold:       req.Options.QualityThreshold,
			RAGSimilarityThreshold: req.Options.RAGSimilarityThreshold,
			WebSearchMaxResults:    req.Options.WebSearchMaxResults,
		},
	}

	taskID, err := s.opts.Engine.StartTask(task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
}

func (s *Server) handleStreamTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	ch, unsub := s.opts.Engine.Stream(taskID)
	defer unsub()
	streamEvents(w, r, ch)
}

func (s *Server) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	ch, unsub, err := s.opts.Engine.Resume(taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	defer unsub()
	streamEvents(w, r, ch)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	s.opts.Engine.Cancel(taskID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if err := s.opts.Engine.Delete(taskID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	cp, ok, err := s.opts.Engine.Get(taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": cp.Metadata,
		"state":    cp.State,
	})
}

func (s *Server) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.opts.Engine.ActiveTasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.opts.Engine.History()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}
