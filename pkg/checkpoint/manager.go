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

package checkpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/kforge/codeforge/pkg/stage"
)

// Manager orchestrates checkpoint persistence and the background TTL
// sweeper.
type Manager struct {
	config  *Config
	storage *Storage
}

// NewManager creates a Manager backed by a filesystem Storage rooted at
// cfg.Root.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()

	storage, err := NewStorage(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &Manager{config: cfg, storage: storage}, nil
}

// Save persists a checkpoint; meta.TaskID identifies the task.
func (m *Manager) Save(meta Metadata, snap stage.Snapshot) error {
	return m.storage.Save(Checkpoint{Metadata: meta, State: snap})
}

// Load retrieves a task's checkpoint, or ok=false if none exists.
func (m *Manager) Load(taskID string) (*Checkpoint, bool, error) {
	return m.storage.Load(taskID)
}

// Delete removes a task's checkpoint.
func (m *Manager) Delete(taskID string) error {
	return m.storage.Delete(taskID)
}

// ListActiveTasks returns metadata for running/paused tasks, most recently
// updated first.
func (m *Manager) ListActiveTasks() ([]Metadata, error) {
	return m.storage.ListActive()
}

// ListHistory returns metadata for every task, most recently updated first.
func (m *Manager) ListHistory() ([]Metadata, error) {
	return m.storage.ListHistory()
}

// RunSweeper runs the background TTL sweeper until ctx is canceled. It
// removes any checkpoint whose updated_at is older than cfg.TTL, unless
// its status is running (a running task is never GC'd even if stalled;
// that is an operator's call, not the sweeper's).
func (m *Manager) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	all, err := m.storage.ListAll()
	if err != nil {
		slog.Warn("checkpoint sweep: list failed", "error", err)
		return
	}
	cutoff := time.Now().Add(-m.config.TTL)
	for _, meta := range all {
		if meta.Status == StatusRunning {
			continue
		}
		if meta.UpdatedAt.After(cutoff) {
			continue
		}
		if err := m.storage.Delete(meta.TaskID); err != nil {
			slog.Warn("checkpoint sweep: delete failed", "task_id", meta.TaskID, "error", err)
			continue
		}
		slog.Debug("checkpoint sweep: removed expired checkpoint", "task_id", meta.TaskID, "updated_at", meta.UpdatedAt)
	}
}

// Hooks provides stage-boundary integration points for the Workflow
// Engine, mirroring the fire-and-forget, warn-on-failure discipline: a
// checkpoint write failure never aborts the run, it is only logged. Every
// method returns the advanced Metadata so the caller threads it forward.
type Hooks struct {
	manager *Manager
}

// NewHooks creates stage-boundary checkpoint hooks.
func NewHooks(manager *Manager) *Hooks {
	return &Hooks{manager: manager}
}

func (h *Hooks) save(meta Metadata, stageName string, status Status, iteration int, snap stage.Snapshot, logMsg string, extra ...any) Metadata {
	meta = meta.Advance(stageName, status, iteration)
	if err := h.manager.Save(meta, snap); err != nil {
		args := append([]any{"task_id", meta.TaskID, "stage", stageName, "iteration", iteration, "error", err}, extra...)
		slog.Warn(logMsg, args...)
		return meta
	}
	slog.Debug("checkpoint saved", "task_id", meta.TaskID, "stage", stageName, "iteration", iteration, "status", status)
	return meta
}

// OnStageStart checkpoints right before a stage begins executing.
func (h *Hooks) OnStageStart(meta Metadata, stageName string, iteration int, snap stage.Snapshot) Metadata {
	return h.save(meta, stageName, StatusRunning, iteration, snap, "checkpoint: save on stage start failed")
}

// OnStageEnd checkpoints after a stage completes successfully.
func (h *Hooks) OnStageEnd(meta Metadata, stageName string, iteration int, snap stage.Snapshot) Metadata {
	return h.save(meta, stageName, StatusRunning, iteration, snap, "checkpoint: save on stage end failed")
}

// OnIterationEnd checkpoints at the end of a fix-loop iteration.
func (h *Hooks) OnIterationEnd(meta Metadata, stageName string, iteration int, snap stage.Snapshot) Metadata {
	return h.OnStageEnd(meta, stageName, iteration, snap)
}

// OnError checkpoints a recoverable stage failure as status=failed.
func (h *Hooks) OnError(meta Metadata, stageName string, iteration int, snap stage.Snapshot, cause error) Metadata {
	return h.save(meta, stageName, StatusFailed, iteration, snap, "checkpoint: save on error failed", "cause", cause)
}

// OnComplete checkpoints the terminal successful stage as status=completed.
func (h *Hooks) OnComplete(meta Metadata, lastStage string, iteration int, snap stage.Snapshot) Metadata {
	return h.save(meta, lastStage, StatusCompleted, iteration, snap, "checkpoint: save on complete failed")
}

// OnPause checkpoints status=paused after the current stage completes,
// following a subscriber disconnect notification from the Event Stream
// Manager.
func (h *Hooks) OnPause(meta Metadata, lastStage string, iteration int, snap stage.Snapshot) Metadata {
	return h.save(meta, lastStage, StatusPaused, iteration, snap, "checkpoint: save on pause failed")
}
