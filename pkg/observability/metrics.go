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

// Package observability collects the Prometheus metrics and JSON
// summaries backing the HTTP API's /metrics and /api/metrics endpoints.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records generation, per-stage, and per-model counters. It is
// nil-safe: every Record/Inc method is a no-op on a nil *Metrics, so
// callers never need to branch on whether metrics are enabled.
type Metrics struct {
	config   *Config
	registry *prometheus.Registry

	generationTotal      *prometheus.CounterVec
	generationDuration   prometheus.Histogram
	generationIterations prometheus.Histogram

	stageCalls    *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec

	modelCalls    *prometheus.CounterVec
	modelTokens   *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	mu         sync.Mutex
	generation generationAgg
	stages     map[string]*stageAgg
	models     map[string]*modelAgg
}

type generationAgg struct {
	total, successful, failed int64
	durationMs, iterations    float64
}

type stageAgg struct {
	calls, errors int64
	durationMs    float64
}

type modelAgg struct {
	calls      int64
	tokens     int64
	durationMs float64
}

// NewMetrics creates a Metrics instance, or returns (nil, nil) when
// metrics collection is disabled so callers can keep using the Record
// methods unconditionally.
func NewMetrics(cfg *Config) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		stages:   make(map[string]*stageAgg),
		models:   make(map[string]*modelAgg),
	}
	m.initGenerationMetrics()
	m.initStageMetrics()
	m.initModelMetrics()
	m.initHTTPMetrics()
	return m, nil
}

func (m *Metrics) initGenerationMetrics() {
	m.generationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "generation",
		Name:      "requests_total",
		Help:      "Total number of generation requests by outcome",
	}, []string{"outcome"})

	m.generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "End-to-end generation task duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
	})

	m.generationIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "generation",
		Name:      "iterations",
		Help:      "Number of validation/fix iterations per generation task",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	})

	m.registry.MustRegister(m.generationTotal, m.generationDuration, m.generationIterations)
}

func (m *Metrics) initStageMetrics() {
	m.stageCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "stage",
		Name:      "calls_total",
		Help:      "Total number of stage executions",
	}, []string{"stage"})

	m.stageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "stage",
		Name:      "errors_total",
		Help:      "Total number of stage executions that errored",
	}, []string{"stage"})

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "stage",
		Name:      "duration_seconds",
		Help:      "Stage execution duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	}, []string{"stage"})

	m.registry.MustRegister(m.stageCalls, m.stageErrors, m.stageDuration)
}

func (m *Metrics) initModelMetrics() {
	m.modelCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "model",
		Name:      "calls_total",
		Help:      "Total number of LLM calls per model",
	}, []string{"model"})

	m.modelTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "model",
		Name:      "tokens_total",
		Help:      "Total number of tokens consumed per model",
	}, []string{"model"})

	m.modelDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "model",
		Name:      "call_duration_seconds",
		Help:      "LLM call duration in seconds per model",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
	}, []string{"model"})

	m.registry.MustRegister(m.modelCalls, m.modelTokens, m.modelDuration)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.registry.MustRegister(m.httpRequests, m.httpDuration)
}

// RecordGeneration records one completed (or failed) generation task.
func (m *Metrics) RecordGeneration(success bool, duration time.Duration, iterations int) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.generationTotal.WithLabelValues(outcome).Inc()
	m.generationDuration.Observe(duration.Seconds())
	m.generationIterations.Observe(float64(iterations))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation.total++
	if success {
		m.generation.successful++
	} else {
		m.generation.failed++
	}
	m.generation.durationMs += float64(duration.Milliseconds())
	m.generation.iterations += float64(iterations)
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(stage string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.stageCalls.WithLabelValues(stage).Inc()
	if failed {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	agg := m.stages[stage]
	if agg == nil {
		agg = &stageAgg{}
		m.stages[stage] = agg
	}
	agg.calls++
	if failed {
		agg.errors++
	}
	agg.durationMs += float64(duration.Milliseconds())
}

// RecordModelCall records one LLM call against a specific model.
func (m *Metrics) RecordModelCall(model string, duration time.Duration, tokens int) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(model).Inc()
	m.modelTokens.WithLabelValues(model).Add(float64(tokens))
	m.modelDuration.WithLabelValues(model).Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	agg := m.models[model]
	if agg == nil {
		agg = &modelAgg{}
		m.models[model] = agg
	}
	agg.calls++
	agg.tokens += int64(tokens)
	agg.durationMs += float64(duration.Milliseconds())
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns the raw Prometheus exposition handler for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot computes the JSON summary served by GET /api/metrics, shaped
// as spec.md's `{generation, stages, models, last_updated}` response.
func (m *Metrics) Snapshot() Snapshot {
	now := time.Now()
	if m == nil {
		return Snapshot{LastUpdated: now}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.generation
	gs := GenerationSummary{
		Total:      g.total,
		Successful: g.successful,
		Failed:     g.failed,
	}
	if g.total > 0 {
		gs.AvgTimeMs = g.durationMs / float64(g.total)
		gs.AvgIterations = g.iterations / float64(g.total)
		gs.SuccessRate = float64(g.successful) / float64(g.total)
	}

	stages := make([]StageSummary, 0, len(m.stages))
	for name, agg := range m.stages {
		s := StageSummary{Stage: name, Calls: agg.calls, Errors: agg.errors}
		if agg.calls > 0 {
			s.AvgTimeMs = agg.durationMs / float64(agg.calls)
		}
		stages = append(stages, s)
	}

	models := make([]ModelSummary, 0, len(m.models))
	for name, agg := range m.models {
		ms := ModelSummary{Model: name, Calls: agg.calls}
		if agg.calls > 0 {
			ms.AvgTokens = float64(agg.tokens) / float64(agg.calls)
			ms.AvgTimeMs = agg.durationMs / float64(agg.calls)
		}
		models = append(models, ms)
	}

	return Snapshot{
		Generation:  gs,
		Stages:      stages,
		Models:      models,
		LastUpdated: now,
	}
}

// Snapshot is the JSON shape served at GET /api/metrics.
type Snapshot struct {
	Generation  GenerationSummary `json:"generation"`
	Stages      []StageSummary    `json:"stages"`
	Models      []ModelSummary    `json:"models"`
	LastUpdated time.Time         `json:"last_updated"`
}

type GenerationSummary struct {
	Total         int64   `json:"total"`
	Successful    int64   `json:"successful"`
	Failed        int64   `json:"failed"`
	AvgTimeMs     float64 `json:"avg_time_ms"`
	AvgIterations float64 `json:"avg_iterations"`
	SuccessRate   float64 `json:"success_rate"`
}

type StageSummary struct {
	Stage     string  `json:"stage"`
	AvgTimeMs float64 `json:"avg_time_ms"`
	Calls     int64   `json:"calls"`
	Errors    int64   `json:"errors"`
}

type ModelSummary struct {
	Model     string  `json:"model"`
	Calls     int64   `json:"calls"`
	AvgTokens float64 `json:"avg_tokens"`
	AvgTimeMs float64 `json:"avg_time_ms"`
}
