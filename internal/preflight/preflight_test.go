package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	assert.True(t, result.Passed, result.Detail)
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Detail, "does not exist")
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	result := CheckDirectoryAccess("test", f)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Detail, "is not a directory")
}

func TestCheckListenAddress(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	result := CheckListenAddress(context.Background(), "api", busy.Addr().String())
	assert.False(t, result.Passed)

	result = CheckListenAddress(context.Background(), "api", "127.0.0.1:0")
	assert.True(t, result.Passed, result.Detail)
}

func TestRunAllReportsMissingDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BundlesDir = filepath.Join(root, "bundles")
	cfg.Paths.AssetsDir = filepath.Join(root, "assets")
	cfg.Paths.DBDir = filepath.Join(root, "db")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.APIBind = ""
	require.NoError(t, os.MkdirAll(cfg.Paths.BundlesDir, 0o755))

	results := RunAll(context.Background(), &cfg)
	require.Len(t, results, 4)
	failed := Failed(results)
	require.Len(t, failed, 3)
	assert.Equal(t, "Assets directory", failed[0].Name)
}
