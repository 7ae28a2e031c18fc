package tts

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Engine names accepted by the configuration.
const (
	EngineCloud = "cloud"
	EngineLocal = "local"
	EngineMock  = "mock"
)

// Config contains all read-aloud configuration options.
type Config struct {
	Engine string `yaml:"engine" env:"READALOUD_ENGINE"`

	// Highlight settings
	HighlightingEnabled bool   `yaml:"highlighting_enabled" env:"READALOUD_HIGHLIGHTING_ENABLED"`
	SentenceMode        bool   `yaml:"sentence_mode" env:"READALOUD_SENTENCE_MODE"`
	HighlightClass      string `yaml:"highlight_class" env:"READALOUD_HIGHLIGHT_CLASS"`

	// Speech settings
	SpeechRate      float64 `yaml:"speech_rate" env:"READALOUD_SPEECH_RATE"`
	Voice           string  `yaml:"voice" env:"READALOUD_VOICE"`
	FallbackToLocal bool    `yaml:"fallback_to_local" env:"READALOUD_FALLBACK_TO_LOCAL"`

	Cloud CloudConfig `yaml:"cloud"`
	Local LocalConfig `yaml:"local"`
	Cache CacheConfig `yaml:"cache"`
}

// CloudConfig contains remote synthesis settings.
type CloudConfig struct {
	APIKey            string        `yaml:"api_key" env:"READALOUD_CLOUD_API_KEY"`
	Endpoint          string        `yaml:"endpoint" env:"READALOUD_CLOUD_ENDPOINT"`
	LanguageCode      string        `yaml:"language_code" env:"READALOUD_CLOUD_LANGUAGE_CODE"`
	Pitch             float64       `yaml:"pitch" env:"READALOUD_CLOUD_PITCH"`
	VolumeGainDB      float64       `yaml:"volume_gain_db" env:"READALOUD_CLOUD_VOLUME_GAIN_DB"`
	Encoding          string        `yaml:"encoding" env:"READALOUD_CLOUD_ENCODING"`
	SampleRateHertz   int           `yaml:"sample_rate_hertz" env:"READALOUD_CLOUD_SAMPLE_RATE_HERTZ"`
	Timeout           time.Duration `yaml:"timeout" env:"READALOUD_CLOUD_TIMEOUT"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"READALOUD_CLOUD_REQUESTS_PER_MINUTE"`
	MonthlyQuota      int           `yaml:"monthly_quota" env:"READALOUD_CLOUD_MONTHLY_QUOTA"`
	LedgerPath        string        `yaml:"ledger_path" env:"READALOUD_CLOUD_LEDGER_PATH"`
}

// LocalConfig contains local engine settings.
type LocalConfig struct {
	Command string  `yaml:"command" env:"READALOUD_LOCAL_COMMAND"`
	Pitch   float64 `yaml:"pitch" env:"READALOUD_LOCAL_PITCH"`
	Volume  float64 `yaml:"volume" env:"READALOUD_LOCAL_VOLUME"`
}

// CacheConfig contains synthesis result cache settings.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" env:"READALOUD_CACHE_ENABLED"`
	Dir      string        `yaml:"dir" env:"READALOUD_CACHE_DIR"`
	MemoryMB int           `yaml:"memory_mb" env:"READALOUD_CACHE_MEMORY_MB"`
	DiskMB   int           `yaml:"disk_mb" env:"READALOUD_CACHE_DISK_MB"`
	TTL      time.Duration `yaml:"ttl" env:"READALOUD_CACHE_TTL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:              EngineCloud,
		HighlightingEnabled: true,
		SentenceMode:        true,
		HighlightClass:      "readaloud-highlight",
		SpeechRate:          1.0,
		Voice:               "en-US-Wavenet-D",
		FallbackToLocal:     true,
		Cloud:               DefaultCloudConfig(),
		Local:               DefaultLocalConfig(),
		Cache:               DefaultCacheConfig(),
	}
}

// DefaultCloudConfig returns default remote synthesis settings.
func DefaultCloudConfig() CloudConfig {
	return CloudConfig{
		Endpoint:          "https://texttospeech.googleapis.com/v1beta1",
		Encoding:          string(EncodingMP3),
		SampleRateHertz:   24000,
		Timeout:           15 * time.Second,
		RequestsPerMinute: 60,
		MonthlyQuota:      1_000_000,
	}
}

// DefaultLocalConfig returns default local engine settings.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		Pitch:  1.0,
		Volume: 1.0,
	}
}

// DefaultCacheConfig returns default cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  true,
		MemoryMB: 32,
		DiskMB:   256,
		TTL:      7 * 24 * time.Hour,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validEngines := []string{EngineCloud, EngineLocal, EngineMock}
	engineValid := false
	for _, e := range validEngines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = e
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("%w: engine %q must be one of %v", ErrInvalidConfig, c.Engine, validEngines)
	}

	if c.SpeechRate < 0.1 || c.SpeechRate > 3.0 {
		return fmt.Errorf("%w: speech_rate must be between 0.1 and 3.0, got %.2f", ErrInvalidConfig, c.SpeechRate)
	}

	if c.HighlightingEnabled && c.HighlightClass == "" {
		return fmt.Errorf("%w: highlight_class cannot be empty", ErrInvalidConfig)
	}

	if c.Engine == EngineCloud {
		if err := c.Cloud.Validate(); err != nil {
			return fmt.Errorf("cloud config: %w", err)
		}
	}

	if c.Cache.Enabled && (c.Cache.MemoryMB < 0 || c.Cache.DiskMB < 0) {
		return fmt.Errorf("%w: cache sizes cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// Validate checks if the remote synthesis configuration is valid.
func (c *CloudConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint cannot be empty", ErrInvalidConfig)
	}

	switch AudioEncoding(strings.ToUpper(c.Encoding)) {
	case EncodingMP3, EncodingLinear16:
		c.Encoding = strings.ToUpper(c.Encoding)
	default:
		return fmt.Errorf("%w: encoding must be MP3 or LINEAR16, got %q", ErrInvalidConfig, c.Encoding)
	}

	if c.Pitch < -20.0 || c.Pitch > 20.0 {
		return fmt.Errorf("%w: pitch must be between -20.0 and 20.0, got %.2f", ErrInvalidConfig, c.Pitch)
	}

	if c.VolumeGainDB < -96.0 || c.VolumeGainDB > 16.0 {
		return fmt.Errorf("%w: volume_gain_db must be between -96.0 and 16.0, got %.2f", ErrInvalidConfig, c.VolumeGainDB)
	}

	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}

	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("%w: requests_per_minute must be positive, got %d", ErrInvalidConfig, c.RequestsPerMinute)
	}

	if c.MonthlyQuota < 0 {
		return fmt.Errorf("%w: monthly_quota cannot be negative", ErrInvalidConfig)
	}

	if c.LanguageCode != "" {
		if _, err := language.Parse(c.LanguageCode); err != nil {
			return fmt.Errorf("%w: language_code %q: %v", ErrInvalidConfig, c.LanguageCode, err)
		}
	}

	return nil
}

// VoiceConfig converts the configuration to the remote voice selection.
func (c *Config) VoiceConfig() VoiceConfig {
	lang := c.Cloud.LanguageCode
	if lang == "" {
		lang = LanguageFromVoice(c.Voice)
	}
	return VoiceConfig{
		LanguageCode:    lang,
		Name:            c.Voice,
		SpeakingRate:    c.SpeechRate,
		Pitch:           c.Cloud.Pitch,
		VolumeGainDB:    c.Cloud.VolumeGainDB,
		Encoding:        AudioEncoding(strings.ToUpper(c.Cloud.Encoding)),
		SampleRateHertz: c.Cloud.SampleRateHertz,
	}
}

// SpeakOptions converts the configuration to local engine options.
func (c *Config) SpeakOptions() SpeakOptions {
	return SpeakOptions{
		Rate:      c.SpeechRate,
		Pitch:     c.Local.Pitch,
		Volume:    c.Local.Volume,
		VoiceName: c.Voice,
	}
}

// LanguageFromVoice derives a BCP 47 language code from a voice name such as
// "en-US-Wavenet-D". It falls back to en-US.
func LanguageFromVoice(name string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) >= 2 {
		if tag, err := language.Parse(parts[0] + "-" + parts[1]); err == nil {
			return tag.String()
		}
	}
	if len(parts) >= 1 && parts[0] != "" {
		if tag, err := language.Parse(parts[0]); err == nil {
			return tag.String()
		}
	}
	return language.AmericanEnglish.String()
}
