package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line flags.
type Loader struct{}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load resolves the configuration: defaults, then the config file, then
// flag overrides, then validation.
func (Loader) Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := NewDefault()

	configPath := ""
	if f := flags.Lookup("config"); f != nil {
		configPath = f.Value.String()
	}
	cfg.ConfigFile = configPath

	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
			return nil, err
		}
	}

	if err := applyFlagOverrides(cfg, flags); err != nil {
		return nil, err
	}

	cfg.DevToolsURL = strings.TrimSpace(cfg.DevToolsURL)
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "devtools", "devtools_url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("devtools: %w", err)
		}
		cfg.DevToolsURL = val
	}
	if raw, ok := lookupSetting(settings, "listen", "listen_addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		cfg.ListenAddr = val
	}
	if raw, ok := lookupSetting(settings, "db", "database"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		cfg.DatabasePath = val
	}
	if raw, ok := lookupSetting(settings, "log_level", "loglevel"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = val
	}
	if raw, ok := lookupSetting(settings, "log_file", "logfile"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
		cfg.LogFile = val
	}
	if raw, ok := lookupSetting(settings, "probe_timeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("probe_timeout: %w", err)
		}
		cfg.ProbeTimeout = val
	}
	if raw, ok := lookupSetting(settings, "probe_pause"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("probe_pause: %w", err)
		}
		cfg.ProbePause = val
	}
	if raw, ok := lookupSetting(settings, "max_records"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_records: %w", err)
		}
		cfg.RecordCapacity = val
	}
	if raw, ok := lookupSetting(settings, "max_har_entries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_har_entries: %w", err)
		}
		cfg.HARCapacity = val
	}
	if raw, ok := lookupSetting(settings, "advanced_capture"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("advanced_capture: %w", err)
		}
		cfg.AdvancedCapture = val
	}
	return nil
}

// applyFlagOverrides applies explicitly set flags over file settings.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || !flags.Changed(name) {
			return
		}
		err = apply()
	}

	set("devtools", func() error { return getString(flags, "devtools", &cfg.DevToolsURL) })
	set("listen", func() error { return getString(flags, "listen", &cfg.ListenAddr) })
	set("db", func() error { return getString(flags, "db", &cfg.DatabasePath) })
	set("log-level", func() error { return getString(flags, "log-level", &cfg.LogLevel) })
	set("log-file", func() error { return getString(flags, "log-file", &cfg.LogFile) })
	set("probe-timeout", func() error { return getDuration(flags, "probe-timeout", &cfg.ProbeTimeout) })
	set("probe-pause", func() error { return getDuration(flags, "probe-pause", &cfg.ProbePause) })
	set("max-records", func() error { return getInt(flags, "max-records", &cfg.RecordCapacity) })
	set("max-har-entries", func() error { return getInt(flags, "max-har-entries", &cfg.HARCapacity) })
	set("advanced-capture", func() error { return getBool(flags, "advanced-capture", &cfg.AdvancedCapture) })

	return err
}
