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

package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Loader reads, decodes, and optionally watches a single local config
// file.
type Loader struct {
	source *fileSource
}

// NewLoader creates a Loader reading from path.
func NewLoader(path string) (*Loader, error) {
	src, err := newFileSource(path)
	if err != nil {
		return nil, err
	}
	return &Loader{source: src}, nil
}

// Load reads, parses, expands, decodes, defaults, and validates the
// config file in one pass.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.source.Load(ctx)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	expanded := expandEnvVars(raw)

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reloads the config file on every debounced write and invokes
// onChange with the freshly decoded, defaulted, validated Config. A
// reload that fails validation is logged and skipped; the previous
// config keeps running rather than crashing the process over a typo.
// Blocks until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) error {
	changes, err := l.source.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("config reload failed, keeping previous config", "error", err)
				continue
			}
			slog.Info("config reloaded")
			if onChange != nil {
				onChange(cfg)
			}
		}
	}
}

// Close releases the underlying file watcher, if one was started.
func (l *Loader) Close() error {
	return l.source.Close()
}

// decodeConfig decodes a generic YAML map into a Config using the yaml
// struct tags, so one tag set serves both unmarshalling paths.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	return decoder.Decode(input)
}

// Load is a convenience one-shot: create a Loader, load once, discard it.
// Callers that also want hot-reload should keep the Loader instead (see
// NewLoader/Watch).
func Load(ctx context.Context, path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx)
}
