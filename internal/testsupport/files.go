package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"stagehand/internal/config"
)

// WriteBundle writes manifest as bundle.toml of a bundle directory named name
// and returns that directory.
func WriteBundle(t testing.TB, cfg *config.Config, name, manifest string) string {
	t.Helper()

	dir := filepath.Join(cfg.Paths.BundlesDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bundle %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bundle.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest for %s: %v", name, err)
	}
	return dir
}

// WriteFile fills the target path with size bytes of a repeating pattern,
// creating parent directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
