// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package checkpoint

import (
	"time"

	"github.com/kforge/codeforge/pkg/stage"
)

// Status is a checkpoint's lifecycle status.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether status is a terminal lifecycle state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether status counts as "active" for list_active_tasks.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusPaused
}

// Metadata is a checkpoint's metadata.json: everything needed to list,
// sort, and filter checkpoints without deserializing the full state.
type Metadata struct {
	TaskID    string    `json:"task_id"`
	TaskText  string    `json:"task_text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastStage string    `json:"last_stage"`
	Status    Status    `json:"status"`
	Iteration int       `json:"iteration"`
	Model     string    `json:"model"`
}

// Checkpoint pairs a task's metadata with its serialized AgentState
// snapshot, the unit round-tripped through Storage.
type Checkpoint struct {
	Metadata Metadata       `json:"metadata"`
	State    stage.Snapshot `json:"state"`
}

// timeNow is a seam so tests can stub out wall-clock time; production code
// always uses time.Now.
var timeNow = time.Now

// NewMetadata creates Metadata for a freshly started task.
func NewMetadata(taskID, taskText, model string) Metadata {
	now := timeNow()
	return Metadata{
		TaskID:    taskID,
		TaskText:  taskText,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusRunning,
		Model:     model,
	}
}

// Advance returns a copy of m updated for the given stage/status/iteration,
// enforcing that updated_at is monotone non-decreasing.
func (m Metadata) Advance(lastStage string, status Status, iteration int) Metadata {
	next := m
	next.LastStage = lastStage
	next.Status = status
	next.Iteration = iteration
	now := timeNow()
	if now.Before(next.UpdatedAt) {
		now = next.UpdatedAt
	}
	next.UpdatedAt = now
	return next
}
