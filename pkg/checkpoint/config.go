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

// Package checkpoint implements the Task Checkpointer: durable per-task
// persistence and lifecycle management under a filesystem root, with
// atomic writes and TTL-based garbage collection.
package checkpoint

import (
	"fmt"
	"time"
)

// Config configures the Task Checkpointer.
//
// Example YAML configuration:
//
//	checkpoint:
//	  root: .codeforge/checkpoints
//	  ttl: 24h
//	  sweep_interval: 10m
type Config struct {
	// Root is the filesystem directory under which each task gets a
	// {task_id}/ subdirectory holding metadata.json and state.json.
	// Default: .codeforge/checkpoints
	Root string `yaml:"root,omitempty"`

	// TTL is how long a non-running checkpoint survives before the
	// background sweeper removes it. Default 24h.
	TTL time.Duration `yaml:"ttl,omitempty"`

	// SweepInterval is how often the background sweeper runs. Default 10m.
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Root == "" {
		c.Root = ".codeforge/checkpoints"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Minute
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("checkpoint root is required")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("checkpoint ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("checkpoint sweep_interval must be positive")
	}
	return nil
}
