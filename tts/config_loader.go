package tts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadConfig builds the configuration from defaults, the viper instance and
// the READALOUD_* environment, in that order of precedence.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := LoadConfigFromViper(v)

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromViper reads the configuration keys set in v on top of the
// defaults. It does not validate.
func LoadConfigFromViper(v *viper.Viper) Config {
	cfg := DefaultConfig()

	if v.IsSet("engine") {
		cfg.Engine = v.GetString("engine")
	}
	if v.IsSet("highlighting_enabled") {
		cfg.HighlightingEnabled = v.GetBool("highlighting_enabled")
	}
	if v.IsSet("sentence_mode") {
		cfg.SentenceMode = v.GetBool("sentence_mode")
	}
	if v.IsSet("highlight_class") {
		cfg.HighlightClass = v.GetString("highlight_class")
	}
	if v.IsSet("speech_rate") {
		cfg.SpeechRate = v.GetFloat64("speech_rate")
	}
	if v.IsSet("voice") {
		cfg.Voice = v.GetString("voice")
	}
	if v.IsSet("fallback_to_local") {
		cfg.FallbackToLocal = v.GetBool("fallback_to_local")
	}

	cfg.Cloud = loadCloudConfig(v)
	cfg.Local = loadLocalConfig(v)
	cfg.Cache = loadCacheConfig(v)

	return cfg
}

func loadCloudConfig(v *viper.Viper) CloudConfig {
	cfg := DefaultCloudConfig()

	if v.IsSet("cloud.api_key") {
		cfg.APIKey = v.GetString("cloud.api_key")
	}
	if v.IsSet("cloud.endpoint") {
		cfg.Endpoint = v.GetString("cloud.endpoint")
	}
	if v.IsSet("cloud.language_code") {
		cfg.LanguageCode = v.GetString("cloud.language_code")
	}
	if v.IsSet("cloud.pitch") {
		cfg.Pitch = v.GetFloat64("cloud.pitch")
	}
	if v.IsSet("cloud.volume_gain_db") {
		cfg.VolumeGainDB = v.GetFloat64("cloud.volume_gain_db")
	}
	if v.IsSet("cloud.encoding") {
		cfg.Encoding = v.GetString("cloud.encoding")
	}
	if v.IsSet("cloud.sample_rate_hertz") {
		cfg.SampleRateHertz = v.GetInt("cloud.sample_rate_hertz")
	}
	if v.IsSet("cloud.timeout") {
		if d, err := time.ParseDuration(v.GetString("cloud.timeout")); err == nil {
			cfg.Timeout = d
		}
	}
	if v.IsSet("cloud.requests_per_minute") {
		cfg.RequestsPerMinute = v.GetInt("cloud.requests_per_minute")
	}
	if v.IsSet("cloud.monthly_quota") {
		cfg.MonthlyQuota = v.GetInt("cloud.monthly_quota")
	}
	if v.IsSet("cloud.ledger_path") {
		cfg.LedgerPath = v.GetString("cloud.ledger_path")
	}

	return cfg
}

func loadLocalConfig(v *viper.Viper) LocalConfig {
	cfg := DefaultLocalConfig()

	if v.IsSet("local.command") {
		cfg.Command = v.GetString("local.command")
	}
	if v.IsSet("local.pitch") {
		cfg.Pitch = v.GetFloat64("local.pitch")
	}
	if v.IsSet("local.volume") {
		cfg.Volume = v.GetFloat64("local.volume")
	}

	return cfg
}

func loadCacheConfig(v *viper.Viper) CacheConfig {
	cfg := DefaultCacheConfig()

	if v.IsSet("cache.enabled") {
		cfg.Enabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("cache.dir") {
		cfg.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.memory_mb") {
		cfg.MemoryMB = v.GetInt("cache.memory_mb")
	}
	if v.IsSet("cache.disk_mb") {
		cfg.DiskMB = v.GetInt("cache.disk_mb")
	}
	if v.IsSet("cache.ttl") {
		if d, err := time.ParseDuration(v.GetString("cache.ttl")); err == nil {
			cfg.TTL = d
		}
	}

	return cfg
}

// SetDefaults sets default values in v for every configuration key.
func SetDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("engine", defaults.Engine)
	v.SetDefault("highlighting_enabled", defaults.HighlightingEnabled)
	v.SetDefault("sentence_mode", defaults.SentenceMode)
	v.SetDefault("highlight_class", defaults.HighlightClass)
	v.SetDefault("speech_rate", defaults.SpeechRate)
	v.SetDefault("voice", defaults.Voice)
	v.SetDefault("fallback_to_local", defaults.FallbackToLocal)

	v.SetDefault("cloud.endpoint", defaults.Cloud.Endpoint)
	v.SetDefault("cloud.encoding", defaults.Cloud.Encoding)
	v.SetDefault("cloud.sample_rate_hertz", defaults.Cloud.SampleRateHertz)
	v.SetDefault("cloud.timeout", defaults.Cloud.Timeout.String())
	v.SetDefault("cloud.requests_per_minute", defaults.Cloud.RequestsPerMinute)
	v.SetDefault("cloud.monthly_quota", defaults.Cloud.MonthlyQuota)

	v.SetDefault("local.pitch", defaults.Local.Pitch)
	v.SetDefault("local.volume", defaults.Local.Volume)

	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.memory_mb", defaults.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", defaults.Cache.DiskMB)
	v.SetDefault("cache.ttl", defaults.Cache.TTL.String())
}

func (c *Config) expandPaths() error {
	var err error
	if c.Cache.Dir, err = homedir.Expand(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	if c.Cloud.LedgerPath, err = homedir.Expand(c.Cloud.LedgerPath); err != nil {
		return fmt.Errorf("ledger path: %w", err)
	}
	return nil
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	log.Debug("loaded environment file", "path", path)
	return nil
}

// WatchConfig watches the configuration file and calls onChange with every
// valid configuration written to it until stop is closed. Invalid edits are
// logged and ignored.
func WatchConfig(v *viper.Viper, stop <-chan struct{}, onChange func(Config)) error {
	path := v.ConfigFileUsed()
	if path == "" {
		return errors.New("no configuration file in use")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}

	// Editors replace files on save, so watch the directory.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("error watching %s: %w", dir, err)
	}
	log.Debug("watching configuration", "path", path)

	go func() {
		defer watcher.Close() //nolint:errcheck
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := v.ReadInConfig(); err != nil {
					log.Warn("could not re-read configuration", "path", path, "error", err)
					continue
				}
				cfg, err := LoadConfig(v)
				if err != nil {
					log.Warn("ignoring invalid configuration", "path", path, "error", err)
					continue
				}
				log.Info("configuration reloaded", "path", path)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("configuration watcher error", "error", err)
			}
		}
	}()

	return nil
}
