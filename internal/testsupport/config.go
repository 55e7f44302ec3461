package testsupport

import (
	"path/filepath"
	"testing"

	"stagehand/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a fresh temp directory with every
// directory created. The HTTP API is disabled and replicants are not
// persisted unless an option says otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RootDir = base
	cfgVal.Paths.BundlesDir = filepath.Join(base, "bundles")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Paths.DBDir = filepath.Join(base, "db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = ""
	cfgVal.Replicants.Persist = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAPI enables the HTTP API on an ephemeral loopback port.
func WithAPI(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = "127.0.0.1:0"
		b.cfg.Paths.APIToken = token
	}
}

// WithPersistence toggles the SQLite replicant store.
func WithPersistence(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Replicants.Persist = enabled
	}
}

// WithChangeDebounce shortens the asset change debounce.
func WithChangeDebounce(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assets.ChangeDebounceMS = ms
	}
}

// WithGracePeriod overrides the graphic disconnect grace period.
func WithGracePeriod(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Graphics.GracePeriodMS = ms
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.RootDir
}
