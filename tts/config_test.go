package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestDefaultConfig tests that default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	if cfg.Engine != EngineCloud {
		t.Errorf("Default engine should be cloud, got %s", cfg.Engine)
	}

	if !cfg.HighlightingEnabled || !cfg.SentenceMode {
		t.Error("Highlighting should default to one sentence at a time")
	}
}

// TestConfigValidation tests configuration validation.
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid engine",
			modify: func(c *Config) {
				c.Engine = "invalid"
			},
			wantErr: true,
			errMsg:  "engine \"invalid\"",
		},
		{
			name: "case insensitive engine",
			modify: func(c *Config) {
				c.Engine = "LOCAL"
			},
			wantErr: false,
		},
		{
			name: "rate too high",
			modify: func(c *Config) {
				c.SpeechRate = 3.5
			},
			wantErr: true,
			errMsg:  "speech_rate must be between",
		},
		{
			name: "rate too low",
			modify: func(c *Config) {
				c.SpeechRate = 0.05
			},
			wantErr: true,
			errMsg:  "speech_rate must be between",
		},
		{
			name: "rate bounds are inclusive",
			modify: func(c *Config) {
				c.SpeechRate = 3.0
			},
			wantErr: false,
		},
		{
			name: "empty highlight class",
			modify: func(c *Config) {
				c.HighlightClass = ""
			},
			wantErr: true,
			errMsg:  "highlight_class",
		},
		{
			name: "empty class without highlighting",
			modify: func(c *Config) {
				c.HighlightClass = ""
				c.HighlightingEnabled = false
			},
			wantErr: false,
		},
		{
			name: "cloud settings ignored for local engine",
			modify: func(c *Config) {
				c.Engine = EngineLocal
				c.Cloud.Encoding = "OGG"
			},
			wantErr: false,
		},
		{
			name: "negative cache size",
			modify: func(c *Config) {
				c.Cache.DiskMB = -1
			},
			wantErr: true,
			errMsg:  "cache sizes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("error should wrap ErrInvalidConfig: %v", err)
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errMsg, err.Error())
				}
			}
		})
	}
}

// TestCloudConfigValidation tests remote synthesis settings.
func TestCloudConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*CloudConfig)
		wantErr bool
	}{
		{"defaults", func(c *CloudConfig) {}, false},
		{"lowercase encoding", func(c *CloudConfig) { c.Encoding = "linear16" }, false},
		{"unknown encoding", func(c *CloudConfig) { c.Encoding = "OGG_OPUS" }, true},
		{"empty endpoint", func(c *CloudConfig) { c.Endpoint = "" }, true},
		{"pitch too high", func(c *CloudConfig) { c.Pitch = 21 }, true},
		{"volume too low", func(c *CloudConfig) { c.VolumeGainDB = -97 }, true},
		{"timeout too short", func(c *CloudConfig) { c.Timeout = 100 * time.Millisecond }, true},
		{"zero rate limit", func(c *CloudConfig) { c.RequestsPerMinute = 0 }, true},
		{"unlimited quota", func(c *CloudConfig) { c.MonthlyQuota = 0 }, false},
		{"negative quota", func(c *CloudConfig) { c.MonthlyQuota = -1 }, true},
		{"language code", func(c *CloudConfig) { c.LanguageCode = "en-GB" }, false},
		{"bad language code", func(c *CloudConfig) { c.LanguageCode = "not a language" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCloudConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestVoiceConfig tests conversion to the remote voice selection.
func TestVoiceConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Voice = "en-GB-Neural2-B"
	cfg.SpeechRate = 1.25
	cfg.Cloud.Encoding = "linear16"
	cfg.Cloud.Pitch = -2

	v := cfg.VoiceConfig()
	if v.LanguageCode != "en-GB" || v.Name != "en-GB-Neural2-B" {
		t.Errorf("voice = %+v", v)
	}
	if v.SpeakingRate != 1.25 || v.Pitch != -2 || v.Encoding != EncodingLinear16 {
		t.Errorf("audio = %+v", v)
	}

	cfg.Cloud.LanguageCode = "en-AU"
	if got := cfg.VoiceConfig().LanguageCode; got != "en-AU" {
		t.Errorf("explicit language code ignored: %s", got)
	}
}

// TestSpeakOptions tests conversion to local engine options.
func TestSpeakOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Voice = "Alex"
	cfg.SpeechRate = 0.8
	cfg.Local.Volume = 0.5

	got := cfg.SpeakOptions()
	want := SpeakOptions{Rate: 0.8, Pitch: 1, Volume: 0.5, VoiceName: "Alex"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestLanguageFromVoice tests language code derivation.
func TestLanguageFromVoice(t *testing.T) {
	tests := map[string]string{
		"en-US-Wavenet-D": "en-US",
		"de-DE-Neural2-B": "de-DE",
		"fr":              "fr",
		"":                "en-US",
		"Alex":            "en-US",
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			if got := LanguageFromVoice(name); got != want {
				t.Errorf("LanguageFromVoice(%q) = %q, want %q", name, got, want)
			}
		})
	}
}

// TestLoadConfigFromViper tests loading configuration from viper.
func TestLoadConfigFromViper(t *testing.T) {
	v := viper.New()
	v.Set("engine", "local")
	v.Set("sentence_mode", false)
	v.Set("speech_rate", 1.5)
	v.Set("voice", "en-GB-Standard-A")
	v.Set("cloud.timeout", "5s")
	v.Set("cloud.monthly_quota", 500)
	v.Set("local.command", "espeak")
	v.Set("cache.ttl", "1h")
	v.Set("cache.enabled", false)

	cfg := LoadConfigFromViper(v)

	if cfg.Engine != EngineLocal {
		t.Errorf("Engine = %s", cfg.Engine)
	}
	if cfg.SentenceMode {
		t.Error("SentenceMode should be false")
	}
	if cfg.SpeechRate != 1.5 || cfg.Voice != "en-GB-Standard-A" {
		t.Errorf("speech = %v %s", cfg.SpeechRate, cfg.Voice)
	}
	if cfg.Cloud.Timeout != 5*time.Second || cfg.Cloud.MonthlyQuota != 500 {
		t.Errorf("cloud = %+v", cfg.Cloud)
	}
	if cfg.Local.Command != "espeak" {
		t.Errorf("local = %+v", cfg.Local)
	}
	if cfg.Cache.TTL != time.Hour || cfg.Cache.Enabled {
		t.Errorf("cache = %+v", cfg.Cache)
	}

	// Unset keys keep their defaults.
	if !cfg.HighlightingEnabled || cfg.Cloud.Endpoint != DefaultCloudConfig().Endpoint {
		t.Error("defaults were lost")
	}
}

// TestLoadConfigDurationParsing tests that a malformed duration keeps the default.
func TestLoadConfigDurationParsing(t *testing.T) {
	v := viper.New()
	v.Set("cloud.timeout", "soon")

	cfg := LoadConfigFromViper(v)
	if cfg.Cloud.Timeout != DefaultCloudConfig().Timeout {
		t.Errorf("Timeout = %v", cfg.Cloud.Timeout)
	}
}

// TestLoadConfig tests environment overrides, path expansion and validation.
func TestLoadConfig(t *testing.T) {
	t.Setenv("READALOUD_ENGINE", "mock")
	t.Setenv("READALOUD_CLOUD_TIMEOUT", "20s")
	t.Setenv("READALOUD_CLOUD_LEDGER_PATH", "~/usage.yml")

	v := viper.New()
	v.Set("engine", "local")
	v.Set("speech_rate", 2.0)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != EngineMock {
		t.Errorf("environment should win: %s", cfg.Engine)
	}
	if cfg.SpeechRate != 2.0 {
		t.Errorf("SpeechRate = %v", cfg.SpeechRate)
	}
	if cfg.Cloud.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v", cfg.Cloud.Timeout)
	}
	if strings.HasPrefix(cfg.Cloud.LedgerPath, "~") {
		t.Errorf("LedgerPath not expanded: %s", cfg.Cloud.LedgerPath)
	}

	t.Setenv("READALOUD_SPEECH_RATE", "9")
	if _, err := LoadConfig(v); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected invalid configuration, got %v", err)
	}
}

// TestSetDefaults tests setting default values in viper.
func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	if v.GetString("engine") != EngineCloud {
		t.Errorf("engine = %s", v.GetString("engine"))
	}
	if v.GetFloat64("speech_rate") != 1.0 {
		t.Errorf("speech_rate = %v", v.GetFloat64("speech_rate"))
	}
	if v.GetString("cloud.timeout") != "15s" {
		t.Errorf("cloud.timeout = %s", v.GetString("cloud.timeout"))
	}
	if v.GetInt("cache.memory_mb") != 32 {
		t.Errorf("cache.memory_mb = %d", v.GetInt("cache.memory_mb"))
	}
}

// TestLoadDotEnv tests that a .env file sets unset variables only.
func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "READALOUD_CLOUD_API_KEY=from-file\nREADALOUD_VOICE=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("READALOUD_VOICE", "from-env")
	t.Setenv("READALOUD_CLOUD_API_KEY", "")
	os.Unsetenv("READALOUD_CLOUD_API_KEY") //nolint:errcheck

	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("READALOUD_CLOUD_API_KEY"); got != "from-file" {
		t.Errorf("api key = %q", got)
	}
	if got := os.Getenv("READALOUD_VOICE"); got != "from-env" {
		t.Errorf("voice = %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}
}

// TestWatchConfig tests that edits to the file reach the callback.
func TestWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readaloud.yml")
	if err := os.WriteFile(path, []byte("speech_rate: 1.0\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	defer close(stop)
	changes := make(chan Config, 16)
	if err := WatchConfig(v, stop, func(c Config) { changes <- c }); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("speech_rate: 2.5\nsentence_mode: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// A truncating write can be seen before the new content.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.SpeechRate == 2.5 && !cfg.SentenceMode {
				return
			}
		case <-timeout:
			t.Fatal("no configuration change seen")
		}
	}
}

// TestWatchConfig_NoFile tests watching without a configuration file.
func TestWatchConfig_NoFile(t *testing.T) {
	if err := WatchConfig(viper.New(), make(chan struct{}), func(Config) {}); err == nil {
		t.Error("expected an error")
	}
}
