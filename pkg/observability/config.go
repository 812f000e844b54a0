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

package observability

// Config configures metrics collection.
type Config struct {
	// Enabled turns on metrics collection and the /metrics and
	// /api/metrics endpoints.
	Enabled bool `yaml:"enabled,omitempty"`

	// Namespace prefixes every Prometheus metric name.
	// Default: "codeforge"
	Namespace string `yaml:"namespace,omitempty"`
}

// SetDefaults applies default values to Config.
func (c *Config) SetDefaults() {
	c.Enabled = true
	if c.Namespace == "" {
		c.Namespace = "codeforge"
	}
}

// Validate checks the Config for errors.
func (c *Config) Validate() error {
	return nil
}
