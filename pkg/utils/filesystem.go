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

// Package utils provides small filesystem and text helpers shared across packages.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir ensures the .codeforge directory exists at the given base path.
// If basePath is empty or ".", it creates ./.codeforge in the current directory.
// Otherwise, it creates {basePath}/.codeforge.
//
// This is used by facilities that need on-disk state under a stable root:
//   - Task checkpoints: {checkpoint_root}/{task_id}/
//   - Retrieval index persistence: {basePath}/.codeforge/vectors/
//
// Returns the full path to the .codeforge directory and any error.
func EnsureDataDir(basePath string) (string, error) {
	var dataDir string
	if basePath == "" || basePath == "." {
		dataDir = ".codeforge"
	} else {
		dataDir = filepath.Join(basePath, ".codeforge")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory at '%s': %w", dataDir, err)
	}

	return dataDir, nil
}

// AtomicWriteFile writes data to path by writing to a temp file in the same
// directory and renaming it into place, so readers never observe a partial
// write and a crash mid-write leaves the prior version (if any) intact.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}
