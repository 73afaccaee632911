package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.True(t, DefaultConfigExists())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	for _, section := range []string{
		"# DittoLink Configuration File",
		"logging:",
		"store:",
		"links:",
		"engine:",
		"rate_limit:",
		"metrics:",
	} {
		assert.Contains(t, text, section)
	}

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(content, &parsed))
	assert.Contains(t, parsed, "links")
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := InitConfig(false)
	require.NoError(t, err)

	_, err = InitConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitConfig_Force(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	_, err = InitConfig(true)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "garbage", string(content))
}

func TestInitConfigToPath_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dittolink.yaml")

	require.NoError(t, InitConfigToPath(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig().Links, cfg.Links)
	assert.Equal(t, GetDefaultConfig().Engine, cfg.Engine)
}
