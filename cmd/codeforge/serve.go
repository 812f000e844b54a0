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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kforge/codeforge/pkg/checkpoint"
	"github.com/kforge/codeforge/pkg/config"
	"github.com/kforge/codeforge/pkg/conversation"
	"github.com/kforge/codeforge/pkg/debate"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/observability"
	"github.com/kforge/codeforge/pkg/retrieval"
	"github.com/kforge/codeforge/pkg/server"
	"github.com/kforge/codeforge/pkg/vector"
	"github.com/kforge/codeforge/pkg/workflow"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port int    `help:"Port to listen on, overriding the config file." default:"0"`
	Host string `help:"Host to bind, overriding the config file."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	loader, err := config.NewLoader(cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()

	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}

	client := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:        cfg.Ollama.BaseURL,
		MaxConcurrency: cfg.Ollama.MaxConcurrency,
		CallTimeout:    cfg.Ollama.CallTimeout,
		DefaultModel:   cfg.Default.DefaultModel,
		MaxRetries:     cfg.StructuredOutput.MaxRetries,
		Logger:         slog.Default(),
	})

	checkpoints, err := checkpoint.NewManager(&checkpoint.Config{
		Root: cfg.Persistence.CheckpointDirectory,
		TTL:  time.Duration(cfg.Persistence.MaxCheckpointAgeHours) * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create checkpoint manager: %w", err)
	}
	go checkpoints.RunSweeper(ctx)

	var index *retrieval.Index
	if cfg.CodeRetrieval.Enabled {
		provider, err := vector.NewProvider(&vector.ProviderConfig{Type: vector.ProviderChromem})
		if err != nil {
			return fmt.Errorf("create vector provider: %w", err)
		}
		index, err = retrieval.New(retrieval.Config{
			Provider:   provider,
			MinQuality: cfg.CodeRetrieval.MinQuality,
		})
		if err != nil {
			return fmt.Errorf("create retrieval index: %w", err)
		}
	}

	convStore := conversation.NewStore()
	var memory *conversation.Memory
	if index != nil {
		memory = conversation.NewMemory(index)
	}

	debateCfg := debate.Config{
		MaxRounds:     cfg.MultiAgentDebate.MaxRounds,
		ReviewerModel: cfg.MultiAgentDebate.ReviewerModel,
	}
	for _, r := range cfg.MultiAgentDebate.Reviewers {
		debateCfg.Reviewers = append(debateCfg.Reviewers, debate.Reviewer(r))
	}

	engine := workflow.New(workflow.Config{
		Client:        client,
		Index:         index,
		ProjectRoot:   cfg.Default.OutputDir,
		Checkpoints:   checkpoints,
		Memory:        memory,
		DebateEnabled: cfg.MultiAgentDebate.Enabled,
		Debate:        debateCfg,
	})

	var metrics *observability.Metrics
	metricsCfg := &observability.Config{Enabled: true}
	metrics, err = observability.NewMetrics(metricsCfg)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	srv, err := server.New(server.Options{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		Engine:        engine,
		Conversations: convStore,
		Metrics:       metrics,
		Models:        client,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	go func() {
		if err := loader.Watch(ctx, func(newCfg *config.Config) {
			slog.Info("config reloaded; restart the process to apply server/ollama changes",
				"default_model", newCfg.Default.DefaultModel)
		}); err != nil && ctx.Err() == nil {
			slog.Error("config watch stopped", "error", err)
		}
	}()

	srv.Start()
	fmt.Printf("\ncodeforge server ready!\n")
	fmt.Printf("   API:     http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Health:  http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Metrics: http://%s:%d/metrics\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
