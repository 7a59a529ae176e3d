package scaffold

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/blueprint/internal/config"
)

func TestInstall_FreshDirectory(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	require.NoError(t, Install(dir, false, &out))

	assert.FileExists(t, filepath.Join(dir, "blueprint.yml"))
	assert.FileExists(t, filepath.Join(dir, ".env.example"))
	assert.Contains(t, out.String(), "created ./blueprint.yml")
	assert.Contains(t, out.String(), "created .mcp.json")

	data, err := os.ReadFile(filepath.Join(dir, ".mcp.json"))
	require.NoError(t, err)
	var cfg mcpConfig
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Contains(t, cfg.MCPServers, "blueprint")
}

func TestInstall_TemplateIsValidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Install(dir, false, &bytes.Buffer{}))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, []string{"http://127.0.0.1:9100"}, cfg.Gateway.Agents)
}

func TestInstall_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	custom := []byte("store:\n  driver: memory\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blueprint.yml"), custom, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mcp.json"),
		[]byte(`{"mcpServers":{"other":{"command":"x"}}}`), 0o644))

	var out bytes.Buffer
	require.NoError(t, Install(dir, false, &out))

	data, err := os.ReadFile(filepath.Join(dir, "blueprint.yml"))
	require.NoError(t, err)
	assert.Equal(t, custom, data)
	assert.Contains(t, out.String(), "skipped ./blueprint.yml")
	assert.Contains(t, out.String(), "updated .mcp.json")

	data, err = os.ReadFile(filepath.Join(dir, ".mcp.json"))
	require.NoError(t, err)
	var cfg mcpConfig
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Contains(t, cfg.MCPServers, "other")
	assert.Contains(t, cfg.MCPServers, "blueprint")
}

func TestInstall_Force(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blueprint.yml"), []byte("x: 1\n"), 0o644))

	require.NoError(t, Install(dir, true, &bytes.Buffer{}))

	data, err := os.ReadFile(filepath.Join(dir, "blueprint.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "driver: file")
}
