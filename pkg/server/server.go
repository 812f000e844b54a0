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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kforge/codeforge/pkg/conversation"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/observability"
	"github.com/kforge/codeforge/pkg/workflow"
)

// ModelLister is satisfied by *llm.OllamaClient; kept as a narrow
// interface here (rather than folding ListModels into llm.Client) so
// every stage agent's test double keeps implementing only the
// generation methods it actually exercises.
type ModelLister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
}

// Options assembles a Server from its dependencies.
type Options struct {
	Host string
	Port int

	Engine       *workflow.Engine
	Conversations *conversation.Store
	Metrics      *observability.Metrics
	Models       ModelLister

	// AllowedOrigins configures CORS; nil means permissive ("*"), matching
	// local single-user development use.
	AllowedOrigins []string
}

// Server is the codeforge HTTP API.
type Server struct {
	opts Options
	http *http.Server
}

// New builds a Server and its route table. It does not start listening;
// call Start for that.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("server: Engine is required")
	}
	if opts.Conversations == nil {
		opts.Conversations = conversation.NewStore()
	}

	s := &Server{opts: opts}
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No overall read/write timeout: the SSE stream endpoints are
		// intentionally long-lived.
	}
	return s, nil
}

// Start begins serving in the background and returns immediately. Errors
// from the listener other than a clean shutdown are logged, since
// http.Server.ListenAndServe runs in its own goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server, waiting for in-flight requests
// (including open SSE streams) to finish or for ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
