// Package config loads pdfinsights settings: defaults, then a TOML file, then
// .env and PDFINSIGHTS_* environment variables. Flags are applied by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/thywilljoshua/pdf-insights/internal/qa"
)

const envPrefix = "PDFINSIGHTS_"

// Duration reads TOML strings such as "300ms" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Viewer   ViewerConfig   `toml:"viewer"`
	Audio    AudioConfig    `toml:"audio"`
	Persona  PersonaConfig  `toml:"persona"`
	Insights InsightsConfig `toml:"insights"`
	Preview  PreviewConfig  `toml:"preview"`
	Logging  LoggingConfig  `toml:"logging"`
	Prefs    PrefsConfig    `toml:"prefs"`
}

type BackendConfig struct {
	BaseURL   string   `toml:"base_url" validate:"required,url"`
	Timeout   Duration `toml:"timeout"` // zero means no deadline
	RateLimit float64  `toml:"rate_limit" validate:"gte=0"`
	Burst     int      `toml:"burst" validate:"gte=0"`
}

type ViewerConfig struct {
	SDKURL              string `toml:"sdk_url" validate:"required,url"`
	ClientID            string `toml:"client_id"`
	Host                string `toml:"host"`
	EmbedMode           string `toml:"embed_mode" validate:"oneof=SIZED_CONTAINER FULL_WINDOW IN_LINE LIGHT_BOX"`
	ShowLeftHandPanel   bool   `toml:"show_left_hand_panel"`
	ShowDownloadPDF     bool   `toml:"show_download_pdf"`
	ShowPrintPDF        bool   `toml:"show_print_pdf"`
	ShowAnnotationTools bool   `toml:"show_annotation_tools"`
}

type AudioConfig struct {
	Speed  float64 `toml:"speed"` // one of qa.PlaybackRates
	OutDir string  `toml:"out_dir" validate:"required"`
}

type PersonaConfig struct {
	TopK     int      `toml:"top_k" validate:"gte=1,lte=50"`
	Debounce Duration `toml:"debounce"`
}

type InsightsConfig struct {
	Provider     string `toml:"provider" validate:"oneof=backend gemini"`
	GeminiModel  string `toml:"gemini_model"`
	GeminiAPIKey string `toml:"gemini_api_key" validate:"required_if=Provider gemini"`
}

type PreviewConfig struct {
	Addr        string   `toml:"addr" validate:"required,hostname_port"`
	PDFCacheTTL Duration `toml:"pdf_cache_ttl"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
	File   string `toml:"file"`
}

type PrefsConfig struct {
	Path string `toml:"path"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Burst:   1,
		},
		Viewer: ViewerConfig{
			SDKURL:              "https://documentservices.adobe.com/view-sdk/viewer.js",
			Host:                "localhost",
			EmbedMode:           "SIZED_CONTAINER",
			ShowLeftHandPanel:   true,
			ShowDownloadPDF:     true,
			ShowPrintPDF:        true,
			ShowAnnotationTools: true,
		},
		Audio: AudioConfig{
			Speed:  1,
			OutDir: filepath.Join(os.TempDir(), "pdfinsights-audio"),
		},
		Persona: PersonaConfig{
			TopK:     5,
			Debounce: Duration{300 * time.Millisecond},
		},
		Insights: InsightsConfig{
			Provider:    "backend",
			GeminiModel: "gemini-2.5-flash",
		},
		Preview: PreviewConfig{
			Addr:        "127.0.0.1:5173",
			PDFCacheTTL: Duration{5 * time.Minute},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Prefs: PrefsConfig{
			Path: defaultPrefsPath(),
		},
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pdfinsights", "prefs.toml")
}

// Load builds the configuration. An empty path skips the TOML file; a missing
// .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	float := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	dur := func(name string, dst *Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			}
		}
	}

	str("BACKEND_URL", &cfg.Backend.BaseURL)
	dur("BACKEND_TIMEOUT", &cfg.Backend.Timeout)
	float("BACKEND_RATE_LIMIT", &cfg.Backend.RateLimit)
	str("VIEWER_SDK_URL", &cfg.Viewer.SDKURL)
	str("VIEWER_CLIENT_ID", &cfg.Viewer.ClientID)
	str("VIEWER_HOST", &cfg.Viewer.Host)
	float("AUDIO_SPEED", &cfg.Audio.Speed)
	str("AUDIO_OUT_DIR", &cfg.Audio.OutDir)
	dur("PERSONA_DEBOUNCE", &cfg.Persona.Debounce)
	str("INSIGHTS_PROVIDER", &cfg.Insights.Provider)
	str("GEMINI_MODEL", &cfg.Insights.GeminiModel)
	str("GEMINI_API_KEY", &cfg.Insights.GeminiAPIKey)
	str("PREVIEW_ADDR", &cfg.Preview.Addr)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("LOG_FILE", &cfg.Logging.File)
	str("PREFS_PATH", &cfg.Prefs.Path)

	// The key name used by the Gemini SDK itself is also honoured.
	if cfg.Insights.GeminiAPIKey == "" {
		cfg.Insights.GeminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks every section and reports all violations at once.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if !validSpeed(c.Audio.Speed) {
		return fmt.Errorf("invalid config: audio.speed %v is not one of %v", c.Audio.Speed, qa.PlaybackRates)
	}
	if c.Backend.Timeout.Duration < 0 {
		return errors.New("invalid config: backend.timeout must not be negative")
	}
	return nil
}

func validSpeed(v float64) bool {
	for _, r := range qa.PlaybackRates {
		if r == v {
			return true
		}
	}
	return false
}
