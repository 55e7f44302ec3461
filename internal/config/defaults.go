package config

const (
	defaultConfigPath       = "~/.config/stagehand/config.toml"
	defaultRootDir          = "~/.local/share/stagehand"
	defaultAPIBind          = "127.0.0.1:9090"
	defaultChangeDebounceMS = 500
	defaultMaxUploadFiles   = 64
	defaultHashWorkers      = 4
	defaultGracePeriodMS    = 1000
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults. Directory fields
// left empty are derived from the root directory during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			RootDir: defaultRootDir,
			APIBind: defaultAPIBind,
		},
		Assets: Assets{
			ChangeDebounceMS: defaultChangeDebounceMS,
			MaxUploadFiles:   defaultMaxUploadFiles,
			HashWorkers:      defaultHashWorkers,
		},
		Graphics: Graphics{
			GracePeriodMS: defaultGracePeriodMS,
		},
		Replicants: Replicants{
			Persist: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
