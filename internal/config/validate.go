package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAssets(); err != nil {
		return err
	}
	if c.Graphics.GracePeriodMS < 0 {
		return errors.New("graphics.grace_period_ms must not be negative")
	}
	return c.validateLogging()
}

func (c *Config) validateAssets() error {
	if err := ensurePositiveMap(map[string]int{
		"assets.change_debounce_ms": c.Assets.ChangeDebounceMS,
		"assets.max_upload_files":   c.Assets.MaxUploadFiles,
		"assets.hash_workers":       c.Assets.HashWorkers,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
