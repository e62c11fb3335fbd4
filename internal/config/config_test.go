package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-importer/internal/plan"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
	assert.True(t, cfg.Import.DedicatedNamespace)
	assert.Equal(t, plan.DefaultRootNamespace, cfg.Import.RootNamespace)
	assert.Equal(t, MismatchAsk, cfg.Import.OnMismatch)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
storage:
  type: bolt
  path: /tmp/program.bolt
import:
  dedicated_namespace: false
  pointer_size: 8
  on_mismatch: abort
log:
  level: debug
  json: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StorageConfig{Type: StorageBolt, Path: "/tmp/program.bolt"}, cfg.Storage)
	assert.False(t, cfg.Import.DedicatedNamespace)
	assert.Equal(t, plan.DefaultRootNamespace, cfg.Import.RootNamespace, "unset keys keep defaults")
	assert.Equal(t, MismatchAbort, cfg.Import.OnMismatch)
	assert.Equal(t, LogConfig{Level: "debug", JSON: true}, cfg.Log)

	opts := cfg.PlanOptions()
	assert.False(t, opts.UseDedicatedNamespace)
	assert.Equal(t, uint64(8), opts.PointerSize)
	assert.Equal(t, plan.DefaultRootNamespace, opts.RootNamespace)

	assert.Equal(t, "debug", cfg.Logging().Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  type: sqlite\n  path: /tmp/a.db\n")

	t.Setenv("CLASS_IMPORTER_STORAGE_TYPE", "memory")
	t.Setenv("CLASS_IMPORTER_IMPORT_ROOT_NAMESPACE", "Recovered")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, "Recovered", cfg.PlanOptions().RootNamespace)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "storage: ["},
		{name: "unknown storage", body: "storage:\n  type: postgres\n"},
		{name: "unknown policy", body: "import:\n  on_mismatch: maybe\n"},
		{name: "bad pointer size", body: "import:\n  pointer_size: 3\n"},
		{name: "missing path", body: "storage:\n  type: bolt\n  path: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x.db"), expandPath("~/x.db"))
	assert.Equal(t, "/abs/x.db", expandPath("/abs/x.db"))
	assert.Equal(t, "", expandPath(""))
}
