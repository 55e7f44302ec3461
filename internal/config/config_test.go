package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/config"
)

func TestLoadDefaultConfigDerivesDirectoriesFromRoot(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("STAGEHAND_API_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, resolved)
	assert.False(t, exists, "config file should be absent in temp HOME")

	root := filepath.Join(tempHome, ".local", "share", "stagehand")
	assert.Equal(t, root, cfg.Paths.RootDir)
	assert.Equal(t, filepath.Join(root, "bundles"), cfg.Paths.BundlesDir)
	assert.Equal(t, filepath.Join(root, "assets"), cfg.Paths.AssetsDir)
	assert.Equal(t, filepath.Join(root, "db"), cfg.Paths.DBDir)
	assert.Equal(t, filepath.Join(root, "logs"), cfg.Paths.LogDir)
	assert.Equal(t, "127.0.0.1:9090", cfg.Paths.APIBind)
	assert.Equal(t, time.Second, cfg.GracePeriod())
	assert.Equal(t, 500*time.Millisecond, cfg.ChangeDebounce())
	assert.Equal(t, 64, cfg.Assets.MaxUploadFiles)
	assert.True(t, cfg.Replicants.Persist)
}

func TestLoadCustomConfig(t *testing.T) {
	t.Setenv("STAGEHAND_API_TOKEN", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	custom := config.Default()
	custom.Paths.RootDir = filepath.Join(dir, "root")
	custom.Paths.AssetsDir = filepath.Join(dir, "media")
	custom.Paths.APIToken = "  secret  "
	custom.Graphics.GracePeriodMS = 2500
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, filepath.Join(dir, "media"), cfg.Paths.AssetsDir)
	assert.Equal(t, filepath.Join(dir, "root", "bundles"), cfg.Paths.BundlesDir)
	assert.Equal(t, "secret", cfg.Paths.APIToken)
	assert.Equal(t, 2500*time.Millisecond, cfg.GracePeriod())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, filepath.Join(dir, "root", "db", "stagehand.sock"), cfg.SocketPath())
}

func TestLoadTokenFromEnvironment(t *testing.T) {
	t.Setenv("STAGEHAND_API_TOKEN", "from-env")
	dir := t.TempDir()

	cfg, _, _, err := config.Load(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Paths.APIToken)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative debounce", func(c *config.Config) { c.Assets.ChangeDebounceMS = -1 }},
		{"negative grace", func(c *config.Config) { c.Graphics.GracePeriodMS = -5 }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnsureDirectoriesAndSample(t *testing.T) {
	dir := t.TempDir()
	samplePath := filepath.Join(dir, "nested", "config.toml")
	require.NoError(t, config.CreateSample(samplePath))

	cfg, _, exists, err := config.Load(samplePath)
	require.NoError(t, err)
	require.True(t, exists)

	cfg.Paths.BundlesDir = filepath.Join(dir, "b")
	cfg.Paths.AssetsDir = filepath.Join(dir, "a")
	cfg.Paths.DBDir = filepath.Join(dir, "d")
	cfg.Paths.LogDir = filepath.Join(dir, "l")
	require.NoError(t, cfg.EnsureDirectories())
	for _, sub := range []string{"a", "b", "d", "l"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
