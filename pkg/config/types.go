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

// Package config loads the single local YAML configuration file that
// drives a codeforge process: default generation parameters, structured
// output, incremental coding, code retrieval, multi-agent debate,
// persistence, the local LLM connection, and logging.
//
// Example config:
//
//	default:
//	  default_model: qwen2.5-coder:7b
//	  max_iterations: 3
//	  temperature: 0.2
//	  enable_web: false
//
//	ollama:
//	  base_url: http://localhost:11434
//	  max_concurrency: 4
//
//	multi_agent_debate:
//	  enabled: true
//	  min_complexity: medium
//	  reviewers: [security, performance, correctness]
//
//	logging:
//	  level: info
//	  enable_console: true
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration object, decoded from a single YAML
// file's top-level sections.
type Config struct {
	Default          DefaultConfig          `yaml:"default"`
	Ollama           OllamaConfig           `yaml:"ollama"`
	StructuredOutput StructuredOutputConfig `yaml:"structured_output"`
	IncrementalCoding IncrementalCodingConfig `yaml:"incremental_coding"`
	CodeRetrieval    CodeRetrievalConfig    `yaml:"code_retrieval"`
	MultiAgentDebate MultiAgentDebateConfig `yaml:"multi_agent_debate"`
	Persistence      PersistenceConfig      `yaml:"persistence"`
	Logging          LoggingConfig          `yaml:"logging"`
	Debug            DebugConfig            `yaml:"debug"`
	Server           ServerConfig           `yaml:"server"`
}

// SetDefaults applies every section's defaults.
func (c *Config) SetDefaults() {
	c.Default.SetDefaults()
	c.Ollama.SetDefaults()
	c.StructuredOutput.SetDefaults()
	c.IncrementalCoding.SetDefaults()
	c.CodeRetrieval.SetDefaults()
	c.MultiAgentDebate.SetDefaults()
	c.Persistence.SetDefaults()
	c.Logging.SetDefaults()
	c.Debug.SetDefaults()
	c.Server.SetDefaults()
}

// Validate checks every section and aggregates all errors found, rather
// than stopping at the first one, so `validate-config` can report a
// complete list in a single pass.
func (c *Config) Validate() error {
	var errs []string
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"default", &c.Default},
		{"ollama", &c.Ollama},
		{"structured_output", &c.StructuredOutput},
		{"incremental_coding", &c.IncrementalCoding},
		{"code_retrieval", &c.CodeRetrieval},
		{"multi_agent_debate", &c.MultiAgentDebate},
		{"persistence", &c.Persistence},
		{"logging", &c.Logging},
		{"debug", &c.Debug},
		{"server", &c.Server},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DefaultConfig holds the task-wide generation defaults.
type DefaultConfig struct {
	DefaultModel  string  `yaml:"default_model"`
	MaxIterations int     `yaml:"max_iterations"`
	Temperature   float64 `yaml:"temperature"`
	EnableWeb     bool    `yaml:"enable_web"`
	OutputDir     string  `yaml:"output_dir"`
}

func (c *DefaultConfig) SetDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = "qwen2.5-coder:7b"
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 3
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
}

func (c *DefaultConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %v", c.Temperature)
	}
	return nil
}

// OllamaConfig configures the Streaming LLM Adapter's connection to a
// local Ollama-compatible backend. Not one of spec.md's enumerated
// external keys, but required to size the adapter's connection-pool
// semaphore "from config" per SPEC_FULL's Implementation Grounding.
type OllamaConfig struct {
	BaseURL        string        `yaml:"base_url"`
	MaxConcurrency int64         `yaml:"max_concurrency"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

func (c *OllamaConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
}

func (c *OllamaConfig) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	return nil
}

// StructuredOutputConfig controls JSON-schema-constrained generation.
type StructuredOutputConfig struct {
	Enabled                bool     `yaml:"enabled"`
	MaxRetries             int      `yaml:"max_retries"`
	EnabledAgents          []string `yaml:"enabled_agents"`
	FallbackToManualParsing bool    `yaml:"fallback_to_manual_parsing"`
}

func (c *StructuredOutputConfig) SetDefaults() {
	c.Enabled = true
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	c.FallbackToManualParsing = true
}

func (c *StructuredOutputConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	return nil
}

// IncrementalCodingConfig gates the per-function Incremental Coder path.
type IncrementalCodingConfig struct {
	Enabled           bool          `yaml:"enabled"`
	MinComplexity     string        `yaml:"min_complexity"`
	MaxFixAttempts    int           `yaml:"max_fix_attempts"`
	ValidationTimeout time.Duration `yaml:"validation_timeout"`
}

func (c *IncrementalCodingConfig) SetDefaults() {
	c.Enabled = true
	if c.MinComplexity == "" {
		c.MinComplexity = "complex"
	}
	if c.MaxFixAttempts <= 0 {
		c.MaxFixAttempts = 3
	}
	if c.ValidationTimeout <= 0 {
		c.ValidationTimeout = 5 * time.Second
	}
}

func (c *IncrementalCodingConfig) Validate() error {
	return validComplexity("min_complexity", c.MinComplexity)
}

// CodeRetrievalConfig controls the Code Retrieval Index.
type CodeRetrievalConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Sources         []string `yaml:"sources"`
	NumExamples     int      `yaml:"num_examples"`
	EmbeddingModel  string   `yaml:"embedding_model"`
	ReindexInterval int      `yaml:"reindex_interval"` // minutes
	MinQuality      float64  `yaml:"min_quality"`
}

func (c *CodeRetrievalConfig) SetDefaults() {
	c.Enabled = true
	if len(c.Sources) == 0 {
		c.Sources = []string{"local", "history"}
	}
	if c.NumExamples <= 0 {
		c.NumExamples = 3
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "hash"
	}
	if c.ReindexInterval <= 0 {
		c.ReindexInterval = 30
	}
	if c.MinQuality == 0 {
		c.MinQuality = 0.5
	}
}

func (c *CodeRetrievalConfig) Validate() error {
	if c.MinQuality < 0 || c.MinQuality > 1 {
		return fmt.Errorf("min_quality must be in [0,1], got %v", c.MinQuality)
	}
	for _, s := range c.Sources {
		switch s {
		case "local", "history", "web":
		default:
			return fmt.Errorf("unknown source %q (valid: local, history, web)", s)
		}
	}
	return nil
}

// MultiAgentDebateConfig controls the Multi-Reviewer Debate gate.
type MultiAgentDebateConfig struct {
	Enabled       bool     `yaml:"enabled"`
	MaxRounds     int      `yaml:"max_rounds"`
	MinComplexity string   `yaml:"min_complexity"`
	Reviewers     []string `yaml:"reviewers"`
	ReviewerModel string   `yaml:"reviewer_model"`
}

func (c *MultiAgentDebateConfig) SetDefaults() {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 3
	}
	if c.MinComplexity == "" {
		c.MinComplexity = "medium"
	}
	if len(c.Reviewers) == 0 {
		c.Reviewers = []string{"security", "performance", "correctness"}
	}
}

func (c *MultiAgentDebateConfig) Validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be >= 1, got %d", c.MaxRounds)
	}
	if err := validComplexity("min_complexity", c.MinComplexity); err != nil {
		return err
	}
	for _, r := range c.Reviewers {
		switch r {
		case "security", "performance", "correctness":
		default:
			return fmt.Errorf("unknown reviewer %q (valid: security, performance, correctness)", r)
		}
	}
	return nil
}

// PersistenceConfig controls the Task Checkpointer.
type PersistenceConfig struct {
	Enabled                bool   `yaml:"enabled"`
	CheckpointDirectory    string `yaml:"checkpoint_directory"`
	MaxCheckpointAgeHours  int    `yaml:"max_checkpoint_age_hours"`
	AutoPauseOnDisconnect  bool   `yaml:"auto_pause_on_disconnect"`
}

func (c *PersistenceConfig) SetDefaults() {
	c.Enabled = true
	if c.CheckpointDirectory == "" {
		c.CheckpointDirectory = ".codeforge/checkpoints"
	}
	if c.MaxCheckpointAgeHours <= 0 {
		c.MaxCheckpointAgeHours = 24
	}
	c.AutoPauseOnDisconnect = true
}

func (c *PersistenceConfig) Validate() error {
	if c.MaxCheckpointAgeHours < 1 {
		return fmt.Errorf("max_checkpoint_age_hours must be >= 1, got %d", c.MaxCheckpointAgeHours)
	}
	return nil
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level            string `yaml:"level"`
	EnableFile       bool   `yaml:"enable_file"`
	EnableConsole    bool   `yaml:"enable_console"`
	EnableMemory     bool   `yaml:"enable_memory"`
	LogFile          string `yaml:"log_file"`
	MemoryMaxEvents  int    `yaml:"memory_max_events"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	c.EnableConsole = true
	if c.LogFile == "" {
		c.LogFile = "codeforge.log"
	}
	if c.MemoryMaxEvents <= 0 {
		c.MemoryMaxEvents = 500
	}
}

func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	if c.EnableFile && c.LogFile == "" {
		return fmt.Errorf("log_file is required when enable_file is true")
	}
	return nil
}

// DebugConfig controls the "under the hood" inspection surface.
type DebugConfig struct {
	UnderTheHoodEnabled bool   `yaml:"under_the_hood_enabled"`
	LogLevel            string `yaml:"log_level"`
	SaveLogsToFile      bool   `yaml:"save_logs_to_file"`
	MaxLogsInMemory     int    `yaml:"max_logs_in_memory"`
}

func (c *DebugConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxLogsInMemory <= 0 {
		c.MaxLogsInMemory = 200
	}
}

func (c *DebugConfig) Validate() error {
	if c.MaxLogsInMemory < 0 {
		return fmt.Errorf("max_logs_in_memory must be >= 0, got %d", c.MaxLogsInMemory)
	}
	return nil
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1,65535], got %d", c.Port)
	}
	return nil
}

func validComplexity(field, v string) error {
	switch v {
	case "simple", "medium", "complex":
		return nil
	default:
		return fmt.Errorf("%s must be one of simple, medium, complex, got %q", field, v)
	}
}
