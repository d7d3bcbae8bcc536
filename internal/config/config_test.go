package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash-lite", cfg.GeminiModel)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "localhost", cfg.Bind)
	assert.Equal(t, "sonar_visits", cfg.SessionKey)
	assert.Equal(t, time.Second, cfg.SynthDelay())
	assert.Equal(t, int64(10<<20), cfg.MaxBufferBytes)
	assert.Equal(t, 120*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "ffmpeg", cfg.FFMPEGCommand)
	assert.Equal(t, "", cfg.GeminiAPIKey)
	assert.Empty(t, cfg.DisabledTools)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "localhost:5000", cfg.Addr())
	require.NoError(t, cfg.Validate())
}

func TestLoad_ExpandsDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".scribe"), cfg.DataDir)
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "GEMINI_API_KEY=abc123\nPORT=6001\nDISABLED_TOOLS=note_export, visit_fetch ,note_export\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0600))

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.GeminiAPIKey)
	assert.Equal(t, "6001", cfg.Port)
	assert.Equal(t, []string{"note_export", "visit_fetch"}, cfg.DisabledTools)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PORT=6001\n"), 0600))
	t.Setenv("PORT", "7002")
	t.Setenv("SYNTH_DELAY_MS", "0")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "7002", cfg.Port)
	assert.Equal(t, time.Duration(0), cfg.SynthDelay())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "non-numeric port", mutate: func(c *Config) { c.Port = "http" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Port = "70000" }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.SynthDelayMS = -1 }, wantErr: true},
		{name: "zero delay", mutate: func(c *Config) { c.SynthDelayMS = 0 }},
		{name: "zero buffer", mutate: func(c *Config) { c.MaxBufferBytes = 0 }, wantErr: true},
		{name: "empty session key", mutate: func(c *Config) { c.SessionKey = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a", "b"}, splitList("a,b,a"))
}
