package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Catalog CatalogConfig
	Imagery ImageryConfig
	Model   ModelConfig
	Batch   BatchConfig
	Notify  NotifyConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

type LogConfig struct {
	Level string
}

// CatalogConfig configures the STAC imagery catalog. ClientID/ClientSecret
// and TokenURL are only needed for catalogs behind OAuth2 client credentials;
// leave them empty for anonymous endpoints.
type CatalogConfig struct {
	URL           string
	Collection    string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	MaxCloudCover float64
	Retries       int
	Timeout       time.Duration
}

type ImageryConfig struct {
	BufferMeters     float64
	ReflectanceScale float64
	CacheDir         string
}

type ModelConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type BatchConfig struct {
	MaxPoints int
	Workers   int
}

// NotifyConfig points at Discord-style webhooks the batch CLI reports to.
// Both are optional; empty URLs disable notifications.
type NotifyConfig struct {
	ErrorWebhookURL   string
	SuccessWebhookURL string
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// A missing .env is fine, the environment may carry everything.
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("API_HOST"),
			Port: viper.GetInt("API_PORT"),
			Env:  viper.GetString("API_ENV"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Catalog: CatalogConfig{
			URL:           viper.GetString("STAC_API_URL"),
			Collection:    viper.GetString("STAC_COLLECTION"),
			TokenURL:      viper.GetString("STAC_TOKEN_URL"),
			ClientID:      viper.GetString("STAC_CLIENT_ID"),
			ClientSecret:  viper.GetString("STAC_CLIENT_SECRET"),
			MaxCloudCover: viper.GetFloat64("MAX_CLOUD_COVER"),
			Retries:       viper.GetInt("CATALOG_RETRIES"),
			Timeout:       time.Duration(viper.GetInt("CATALOG_TIMEOUT_SECONDS")) * time.Second,
		},
		Imagery: ImageryConfig{
			BufferMeters:     viper.GetFloat64("AOI_BUFFER_METERS"),
			ReflectanceScale: viper.GetFloat64("REFLECTANCE_SCALE"),
			CacheDir:         viper.GetString("TILE_CACHE_DIR"),
		},
		Model: ModelConfig{
			Endpoint: viper.GetString("MODEL_ENDPOINT"),
			Timeout:  time.Duration(viper.GetInt("MODEL_TIMEOUT_SECONDS")) * time.Second,
		},
		Batch: BatchConfig{
			MaxPoints: viper.GetInt("MAX_POINTS_PER_REQUEST"),
			Workers:   viper.GetInt("BATCH_WORKERS"),
		},
		Notify: NotifyConfig{
			ErrorWebhookURL:   viper.GetString("ERROR_WEBHOOK_URL"),
			SuccessWebhookURL: viper.GetString("SUCCESS_WEBHOOK_URL"),
		},
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Catalog.URL == "" {
		cfg.Catalog.URL = "https://planetarycomputer.microsoft.com/api/stac/v1"
	}
	if cfg.Catalog.Collection == "" {
		cfg.Catalog.Collection = "sentinel-2-l2a"
	}
	if cfg.Catalog.MaxCloudCover == 0 {
		cfg.Catalog.MaxCloudCover = 20
	}
	if cfg.Catalog.Retries == 0 {
		cfg.Catalog.Retries = 3
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 60 * time.Second
	}
	if cfg.Imagery.BufferMeters == 0 {
		cfg.Imagery.BufferMeters = 40
	}
	if cfg.Imagery.ReflectanceScale == 0 {
		cfg.Imagery.ReflectanceScale = 10000
	}
	if cfg.Imagery.CacheDir == "" {
		cfg.Imagery.CacheDir = "data/cache/tiff"
	}
	if cfg.Model.Endpoint == "" {
		cfg.Model.Endpoint = "http://localhost:8501"
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 120 * time.Second
	}
	if cfg.Batch.MaxPoints == 0 {
		cfg.Batch.MaxPoints = 20
	}
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = 8
	}
}

func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
