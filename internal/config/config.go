package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Gemini    GeminiConfig     `mapstructure:"gemini"`
	Render    RenderConfig     `mapstructure:"render"`
	Session   SessionConfig    `mapstructure:"session"`
	Fetch     FetchConfig      `mapstructure:"fetch"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Templates []TemplateConfig `mapstructure:"templates"`
}

type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	Mode        string     `mapstructure:"mode"`
	MaxUploadMB int        `mapstructure:"max_upload_mb"`
	CORS        CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// GeminiConfig configures the AI gateway. An empty APIKey is not rejected at
// load time; gateway calls fail instead.
type GeminiConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	CaptionModel string        `mapstructure:"caption_model"`
	EditModel    string        `mapstructure:"edit_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type RenderConfig struct {
	StageWidth  int     `mapstructure:"stage_width"`
	StageHeight int     `mapstructure:"stage_height"`
	FontPath    string  `mapstructure:"font_path"`
	FontRatio   float64 `mapstructure:"font_ratio"`
	ExportScale float64 `mapstructure:"export_scale"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxMB     int           `mapstructure:"max_mb"`
}

// StorageConfig describes the optional S3-compatible export archive.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // s3, r2, s3compatible; empty auto-detects from endpoint
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

// TemplateConfig is one catalog entry; a non-empty list replaces the built-in catalog.
type TemplateConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Load reads configuration from file, .env and environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and . for config.yaml.
//
// Returns:
//   - *Config: merged configuration.
//   - error: non-nil if the file exists but cannot be read or decoded.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and common overrides
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "API_KEY")
	v.BindEnv("gemini.caption_model", "GEMINI_CAPTION_MODEL")
	v.BindEnv("gemini.edit_model", "GEMINI_EDIT_MODEL")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("gemini.caption_model", "gemini-3-pro-preview")
	v.SetDefault("gemini.edit_model", "gemini-2.5-flash-image")
	v.SetDefault("gemini.timeout", 120*time.Second)
	v.SetDefault("render.stage_width", 800)
	v.SetDefault("render.stage_height", 600)
	v.SetDefault("render.font_path", "")
	v.SetDefault("render.font_ratio", 0.075)
	v.SetDefault("render.export_scale", 2.0)
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.user_agent", "memegenie/1.0")
	v.SetDefault("fetch.max_mb", 20)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "memegenie")
	v.SetDefault("storage.prefix", "exports")
}

// Validate checks values that would otherwise fail deep inside the renderer
// or the archive client.
func (c *Config) Validate() error {
	if c.Render.StageWidth <= 0 || c.Render.StageHeight <= 0 {
		return fmt.Errorf("render: stage size must be positive, got %dx%d",
			c.Render.StageWidth, c.Render.StageHeight)
	}
	if c.Render.ExportScale <= 0 {
		return fmt.Errorf("render: export_scale must be positive, got %v", c.Render.ExportScale)
	}
	if c.Render.FontRatio <= 0 || c.Render.FontRatio >= 1 {
		return fmt.Errorf("render: font_ratio must be in (0,1), got %v", c.Render.FontRatio)
	}
	if c.Storage.Enabled && (c.Storage.Endpoint == "" || c.Storage.Bucket == "") {
		return fmt.Errorf("storage: endpoint and bucket are required when enabled")
	}
	for i, t := range c.Templates {
		if t.ID == "" || t.URL == "" {
			return fmt.Errorf("templates[%d]: id and url are required", i)
		}
	}
	return nil
}
