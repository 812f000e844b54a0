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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kforge/codeforge/pkg/utils"
)

const (
	metadataFileName = "metadata.json"
	stateFileName    = "state.json"
)

// Storage persists checkpoints under root/{task_id}/{metadata,state}.json
// using atomic temp-file-then-rename writes, so a reader never observes a
// partially written file even if the process crashes mid-write.
type Storage struct {
	root string

	// locks serializes concurrent Save calls for the same task; a fresh
	// mutex is created per task id on first use and kept for the process
	// lifetime (bounded by the number of distinct tasks ever seen).
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStorage creates a Storage rooted at root, creating the directory if
// it does not already exist.
func NewStorage(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("checkpoint: create root %q: %w", root, err)
	}
	return &Storage{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Storage) taskDir(taskID string) string {
	return filepath.Join(s.root, taskID)
}

func (s *Storage) taskLock(taskID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

// Save atomically writes metadata.json and state.json for a task.
// Concurrent Save calls for the same task_id are serialized.
func (s *Storage) Save(cp Checkpoint) error {
	taskID := cp.Metadata.TaskID
	if taskID == "" {
		return fmt.Errorf("checkpoint: task_id is required")
	}

	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.taskDir(taskID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("checkpoint: create task dir: %w", err)
	}

	metaBytes, err := json.MarshalIndent(cp.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal metadata: %w", err)
	}
	stateBytes, err := json.MarshalIndent(cp.State, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state: %w", err)
	}

	// state.json is written first: if the process crashes between the two
	// writes, a reader finds the prior metadata.json pointing at a stage
	// whose state.json is now ahead of it, never the reverse.
	if err := utils.AtomicWriteFile(filepath.Join(dir, stateFileName), stateBytes, 0644); err != nil {
		return fmt.Errorf("checkpoint: write state: %w", err)
	}
	if err := utils.AtomicWriteFile(filepath.Join(dir, metadataFileName), metaBytes, 0644); err != nil {
		return fmt.Errorf("checkpoint: write metadata: %w", err)
	}
	return nil
}

// Load reads a task's checkpoint, or (nil, false, nil) if it does not exist.
func (s *Storage) Load(taskID string) (*Checkpoint, bool, error) {
	dir := s.taskDir(taskID)
	metaBytes, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint: read metadata: %w", err)
	}
	stateBytes, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint: read state: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(metaBytes, &cp.Metadata); err != nil {
		return nil, false, fmt.Errorf("checkpoint: unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(stateBytes, &cp.State); err != nil {
		return nil, false, fmt.Errorf("checkpoint: unmarshal state: %w", err)
	}
	return &cp, true, nil
}

// Delete removes both files for a task. Deleting a task that does not
// exist is not an error.
func (s *Storage) Delete(taskID string) error {
	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.taskDir(taskID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("checkpoint: delete task dir: %w", err)
	}
	return nil
}

// ListAll returns every task's Metadata, in no particular order.
func (s *Storage) ListAll() ([]Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: read root: %w", err)
	}

	var out []Metadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		metaBytes, err := os.ReadFile(filepath.Join(s.root, e.Name(), metadataFileName))
		if err != nil {
			continue
		}
		var m Metadata
		if err := json.Unmarshal(metaBytes, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ListActive returns Metadata for tasks with status running or paused,
// sorted by updated_at descending.
func (s *Storage) ListActive() ([]Metadata, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	var active []Metadata
	for _, m := range all {
		if m.Status.IsActive() {
			active = append(active, m)
		}
	}
	sortByUpdatedAtDesc(active)
	return active, nil
}

// ListHistory returns Metadata for every task, sorted by updated_at
// descending.
func (s *Storage) ListHistory() ([]Metadata, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	sortByUpdatedAtDesc(all)
	return all, nil
}

func sortByUpdatedAtDesc(m []Metadata) {
	sort.Slice(m, func(i, j int) bool { return m[i].UpdatedAt.After(m[j].UpdatedAt) })
}
