package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAssets()
	if c.Graphics.GracePeriodMS == 0 {
		c.Graphics.GracePeriodMS = defaultGracePeriodMS
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RootDir) == "" {
		c.Paths.RootDir = defaultRootDir
	}
	if c.Paths.RootDir, err = expandPath(c.Paths.RootDir); err != nil {
		return fmt.Errorf("paths.root_dir: %w", err)
	}

	derived := []struct {
		key   string
		value *string
		leaf  string
	}{
		{"paths.bundles_dir", &c.Paths.BundlesDir, "bundles"},
		{"paths.assets_dir", &c.Paths.AssetsDir, "assets"},
		{"paths.db_dir", &c.Paths.DBDir, "db"},
		{"paths.log_dir", &c.Paths.LogDir, "logs"},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = filepath.Join(c.Paths.RootDir, entry.leaf)
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("STAGEHAND_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeAssets() {
	if c.Assets.ChangeDebounceMS == 0 {
		c.Assets.ChangeDebounceMS = defaultChangeDebounceMS
	}
	if c.Assets.MaxUploadFiles == 0 {
		c.Assets.MaxUploadFiles = defaultMaxUploadFiles
	}
	if c.Assets.HashWorkers == 0 {
		c.Assets.HashWorkers = defaultHashWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
