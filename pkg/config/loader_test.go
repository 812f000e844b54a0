package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "codeforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadAppliesDefaultsAndValidates(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
default:
  default_model: llama3:8b
multi_agent_debate:
  enabled: true
`)
	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", cfg.Default.DefaultModel)
	assert.Equal(t, 3, cfg.Default.MaxIterations) // defaulted
	assert.True(t, cfg.MultiAgentDebate.Enabled)
	assert.Equal(t, "medium", cfg.MultiAgentDebate.MinComplexity) // defaulted
}

func TestLoader_LoadExpandsEnvVars(t *testing.T) {
	t.Setenv("CODEFORGE_OLLAMA_URL", "http://ollama.internal:11434")
	path := writeConfig(t, t.TempDir(), `
ollama:
  base_url: ${CODEFORGE_OLLAMA_URL}
default:
  output_dir: ${CODEFORGE_MISSING:-/tmp/codeforge}
`)
	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "/tmp/codeforge", cfg.Default.OutputDir)
}

func TestLoader_LoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
default:
  max_iterations: 0
`)
	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoader_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "default:\n  default_model: llama3:8b\n")

	loader, err := NewLoader(path)
	require.NoError(t, err)
	defer loader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() {
		_ = loader.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher time to register before mutating the file.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("default:\n  default_model: mistral:7b\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "mistral:7b", cfg.Default.DefaultModel)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
