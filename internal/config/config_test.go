package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pdfinsights.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Zero(t, cfg.Backend.Timeout.Duration)
	assert.Equal(t, "SIZED_CONTAINER", cfg.Viewer.EmbedMode)
	assert.Equal(t, 5, cfg.Persona.TopK)
	assert.Equal(t, 300*time.Millisecond, cfg.Persona.Debounce.Duration)
	assert.Equal(t, "backend", cfg.Insights.Provider)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "http://api.internal:9000"
timeout = "30s"
rate_limit = 5.0

[persona]
debounce = "150ms"

[audio]
speed = 1.25

[logging]
level = "debug"
`)
	t.Setenv("PDFINSIGHTS_BACKEND_URL", "http://override:8080")
	t.Setenv("PDFINSIGHTS_LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://override:8080", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout.Duration)
	assert.Equal(t, 5.0, cfg.Backend.RateLimit)
	assert.Equal(t, 150*time.Millisecond, cfg.Persona.Debounce.Duration)
	assert.Equal(t, 1.25, cfg.Audio.Speed)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[backend\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[persona]\ndebounce = \"soon\"\n"))
	assert.Error(t, err)

	t.Setenv("PDFINSIGHTS_AUDIO_SPEED", "fast")
	_, err = Load("")
	assert.ErrorContains(t, err, "PDFINSIGHTS_AUDIO_SPEED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad url", mutate: func(c *Config) { c.Backend.BaseURL = "not a url" }, wantErr: "BaseURL"},
		{name: "bad speed", mutate: func(c *Config) { c.Audio.Speed = 2 }, wantErr: "audio.speed"},
		{name: "bad provider", mutate: func(c *Config) { c.Insights.Provider = "openai" }, wantErr: "Provider"},
		{name: "gemini needs key", mutate: func(c *Config) { c.Insights.Provider = "gemini" }, wantErr: "GeminiAPIKey"},
		{
			name: "gemini with key",
			mutate: func(c *Config) {
				c.Insights.Provider = "gemini"
				c.Insights.GeminiAPIKey = "k"
			},
		},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "Level"},
		{name: "negative timeout", mutate: func(c *Config) { c.Backend.Timeout.Duration = -time.Second }, wantErr: "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
