package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"

	"github.com/ent0n29/aerocopilot/internal/speech"
)

// Config contains all runtime settings for the copilot voice service.
type Config struct {
	BindAddr                 string        `env:"APP_BIND_ADDR" envDefault:":8080"`
	ShutdownTimeout          time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SessionInactivityTimeout time.Duration `env:"APP_SESSION_INACTIVITY_TIMEOUT" envDefault:"30m"`
	MetricsNamespace         string        `env:"APP_METRICS_NAMESPACE" envDefault:"aerocopilot"`
	AllowAnyOrigin           bool          `env:"APP_ALLOW_ANY_ORIGIN" envDefault:"false"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	// TTSProvider is auto, local or elevenlabs. Auto picks elevenlabs when the key is usable.
	TTSProvider     string   `env:"TTS_PROVIDER" envDefault:"auto"`
	PreferredVoices []string `env:"TTS_PREFERRED_VOICES" envSeparator:","`
	AudioCacheSize  int      `env:"TTS_AUDIO_CACHE_SIZE" envDefault:"64"`
	EspeakBinary    string   `env:"TTS_ESPEAK_BINARY"`
	EspeakWPM       int      `env:"TTS_ESPEAK_WPM" envDefault:"175"`

	ElevenLabsAPIKey       string        `env:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL      string        `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io"`
	ElevenLabsVoiceID      string        `env:"ELEVENLABS_VOICE_ID" envDefault:"NFG5qt843uXKj4pFvR7C"`
	ElevenLabsModelID      string        `env:"ELEVENLABS_MODEL_ID" envDefault:"eleven_monolingual_v1"`
	ElevenLabsOutputFormat string        `env:"ELEVENLABS_OUTPUT_FORMAT" envDefault:"mp3_44100_128"`
	ElevenLabsTimeout      time.Duration `env:"ELEVENLABS_TIMEOUT" envDefault:"30s"`

	BackendURL          string        `env:"ADVISORY_BACKEND_URL" envDefault:"http://localhost:8000"`
	BackendTimeout      time.Duration `env:"ADVISORY_BACKEND_TIMEOUT" envDefault:"60s"`
	BackendMaxRetries   int           `env:"ADVISORY_BACKEND_MAX_RETRIES" envDefault:"2"`
	BackendPingInterval time.Duration `env:"ADVISORY_BACKEND_PING_INTERVAL" envDefault:"30s"`

	OpenSkyURL          string        `env:"OPENSKY_BASE_URL" envDefault:"https://opensky-network.org/api"`
	FlightsRefresh      time.Duration `env:"FLIGHTS_REFRESH_INTERVAL" envDefault:"30s"`
	FlightsMinInterval  time.Duration `env:"FLIGHTS_MIN_FETCH_INTERVAL" envDefault:"10s"`
	FlightsPollDisabled bool          `env:"FLIGHTS_POLL_DISABLED" envDefault:"false"`

	DatabaseURL string `env:"DATABASE_URL"`
}

// Load reads environment variables, applies defaults and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.BindAddr = strings.TrimSpace(c.BindAddr)
	c.TTSProvider = strings.ToLower(strings.TrimSpace(c.TTSProvider))
	c.ElevenLabsAPIKey = strings.TrimSpace(c.ElevenLabsAPIKey)
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)

	voices := c.PreferredVoices[:0]
	for _, v := range c.PreferredVoices {
		if v = strings.TrimSpace(v); v != "" {
			voices = append(voices, v)
		}
	}
	c.PreferredVoices = voices
}

func (c Config) Validate() error {
	var errs []error
	if c.BindAddr == "" {
		errs = append(errs, errors.New("APP_BIND_ADDR must not be empty"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("APP_SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.SessionInactivityTimeout <= 0 {
		errs = append(errs, errors.New("APP_SESSION_INACTIVITY_TIMEOUT must be positive"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.TTSProvider != "auto" {
		if _, err := speech.ParseProvider(c.TTSProvider); err != nil {
			errs = append(errs, fmt.Errorf("TTS_PROVIDER %q: want auto, local or elevenlabs", c.TTSProvider))
		}
	}
	if c.AudioCacheSize < 0 {
		errs = append(errs, errors.New("TTS_AUDIO_CACHE_SIZE must not be negative"))
	}
	if c.BackendMaxRetries < 0 {
		errs = append(errs, errors.New("ADVISORY_BACKEND_MAX_RETRIES must not be negative"))
	}
	for key, raw := range map[string]string{
		"ADVISORY_BACKEND_URL": c.BackendURL,
		"ELEVENLABS_BASE_URL":  c.ElevenLabsBaseURL,
		"OPENSKY_BASE_URL":     c.OpenSkyURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q: want an absolute http(s) URL", key, raw))
		}
	}
	return errors.Join(errs...)
}

// Provider resolves TTS_PROVIDER. Auto returns the empty provider so the
// speech manager picks based on credential availability.
func (c Config) Provider() speech.Provider {
	if c.TTSProvider == "auto" || c.TTSProvider == "" {
		return ""
	}
	p, _ := speech.ParseProvider(c.TTSProvider)
	return p
}
