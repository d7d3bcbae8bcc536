package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration. Values come from the environment,
// then an optional .env file, then defaults.
type Config struct {
	// GeminiAPIKey is the speech-to-text credential. The relay starts without it
	// and reports a configuration error per request.
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	Port string `mapstructure:"PORT"`
	Bind string `mapstructure:"BIND"`
	Env  string `mapstructure:"ENV"`

	// RelayURL is where the transcription client sends audio.
	RelayURL  string `mapstructure:"RELAY_URL"`
	UploadDir string `mapstructure:"UPLOAD_DIR"`

	// DataDir holds scribe.db. A leading ~ is expanded.
	DataDir    string `mapstructure:"DATA_DIR"`
	SessionKey string `mapstructure:"SESSION_KEY"`

	// DatabaseURL selects the Postgres persister when set.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	SynthDelayMS       int   `mapstructure:"SYNTH_DELAY_MS"`
	MaxBufferBytes     int64 `mapstructure:"MAX_BUFFER_BYTES"`
	HTTPTimeoutSeconds int   `mapstructure:"HTTP_TIMEOUT_SECONDS"`

	CORSOrigins []string `mapstructure:"-"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `mapstructure:"-"`

	FFMPEGCommand    string `mapstructure:"FFMPEG_COMMAND"`
	AudioInputFormat string `mapstructure:"AUDIO_INPUT_FORMAT"`
	AudioInputDevice string `mapstructure:"AUDIO_INPUT_DEVICE"`
}

var defaults = map[string]any{
	"GEMINI_API_KEY":       "",
	"GEMINI_MODEL":         "gemini-2.0-flash-lite",
	"PORT":                 "5000",
	"BIND":                 "localhost",
	"ENV":                  "development",
	"RELAY_URL":            "http://localhost:5000",
	"UPLOAD_DIR":           "uploads",
	"DATA_DIR":             "~/.scribe",
	"SESSION_KEY":          "sonar_visits",
	"DATABASE_URL":         "",
	"SYNTH_DELAY_MS":       1000,
	"MAX_BUFFER_BYTES":     10 << 20,
	"HTTP_TIMEOUT_SECONDS": 120,
	"CORS_ORIGINS":         "",
	"DISABLED_TOOLS":       "",
	"FFMPEG_COMMAND":       "ffmpeg",
	"AUDIO_INPUT_FORMAT":   "pulse",
	"AUDIO_INPUT_DEVICE":   "default",
}

// DefaultConfig returns the configuration from the environment and defaults, without a dotenv file.
func DefaultConfig() *Config {
	cfg, err := load(viper.New())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from the environment and the dotenv file at envFile.
// A missing file is not an error; an unparseable one is.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for key, def := range defaults {
		v.SetDefault(key, def)
		// Bind explicitly so Unmarshal sees env-only keys
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.DisabledTools = splitList(v.GetString("DISABLED_TOOLS"))

	dir, err := expandHome(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dir
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 0 and 65535, got %q", c.Port)
	}
	if c.SynthDelayMS < 0 {
		return fmt.Errorf("SYNTH_DELAY_MS must not be negative, got %d", c.SynthDelayMS)
	}
	if c.MaxBufferBytes <= 0 {
		return fmt.Errorf("MAX_BUFFER_BYTES must be positive, got %d", c.MaxBufferBytes)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	if c.SessionKey == "" {
		return fmt.Errorf("SESSION_KEY must not be empty")
	}
	return nil
}

// IsDev reports whether ENV is development.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Bind + ":" + c.Port
}

func (c *Config) SynthDelay() time.Duration {
	return time.Duration(c.SynthDelayMS) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// splitList splits a comma-separated value, trims whitespace and removes duplicates.
func splitList(s string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !seen[part] {
			seen[part] = true
			result = append(result, part)
		}
	}
	return result
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve DATA_DIR: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
