package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Artifact source names accepted in ARTIFACT_SOURCE.
const (
	ArtifactSourceFile     = "file"
	ArtifactSourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Artifacts  ArtifactsConfig
	Currency   CurrencyConfig
	Prediction PredictionConfig
	Database   DatabaseConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// ArtifactsConfig selects where the model and parameter descriptor are
// loaded from. Dir empty means the directory of the running executable.
type ArtifactsConfig struct {
	Source     string
	Dir        string
	ModelFile  string
	ParamsFile string
	ModelKey   string
}

// CurrencyConfig controls how predicted prices are rendered.
type CurrencyConfig struct {
	Locale string
	Symbol string
}

// PredictionConfig tunes the prediction path.
// CacheSize 0 disables result caching.
type PredictionConfig struct {
	CacheSize int
}

// DatabaseConfig holds PostgreSQL connection configuration.
// It is only required when artifacts are read from PostgreSQL.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("ARTIFACT_SOURCE", ArtifactSourceFile)
	v.SetDefault("ARTIFACT_DIR", "")
	v.SetDefault("MODEL_FILE", "model.json")
	v.SetDefault("PARAMS_FILE", "params.json")
	v.SetDefault("MODEL_KEY", "bengaluru_house_price")
	v.SetDefault("CURRENCY_LOCALE", "en")
	v.SetDefault("CURRENCY_SYMBOL", "₹")
	v.SetDefault("PREDICTION_CACHE_SIZE", 1024)
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "houseprice")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 1)
	v.SetDefault("DB_POOL_MAX", 4)
	v.SetDefault("CORS_ORIGINS", "http://localhost:8080")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Artifacts: ArtifactsConfig{
			Source:     strings.ToLower(strings.TrimSpace(v.GetString("ARTIFACT_SOURCE"))),
			Dir:        v.GetString("ARTIFACT_DIR"),
			ModelFile:  v.GetString("MODEL_FILE"),
			ParamsFile: v.GetString("PARAMS_FILE"),
			ModelKey:   v.GetString("MODEL_KEY"),
		},
		Currency: CurrencyConfig{
			Locale: v.GetString("CURRENCY_LOCALE"),
			Symbol: v.GetString("CURRENCY_SYMBOL"),
		},
		Prediction: PredictionConfig{
			CacheSize: v.GetInt("PREDICTION_CACHE_SIZE"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// UsesDatabase reports whether the configuration needs a PostgreSQL pool.
func (c *Config) UsesDatabase() bool {
	return c.Artifacts.Source == ArtifactSourcePostgres
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Artifacts.Source {
	case ArtifactSourceFile:
		if c.Artifacts.ModelFile == "" {
			return fmt.Errorf("MODEL_FILE is required")
		}
		if c.Artifacts.ParamsFile == "" {
			return fmt.Errorf("PARAMS_FILE is required")
		}
	case ArtifactSourcePostgres:
		if c.Artifacts.ModelKey == "" {
			return fmt.Errorf("MODEL_KEY is required")
		}
		if err := c.Database.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("ARTIFACT_SOURCE must be %q or %q, got %q",
			ArtifactSourceFile, ArtifactSourcePostgres, c.Artifacts.Source)
	}

	if c.Currency.Locale == "" {
		return fmt.Errorf("CURRENCY_LOCALE is required")
	}

	if c.Prediction.CacheSize < 0 {
		return fmt.Errorf("PREDICTION_CACHE_SIZE must be non-negative")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// Validate checks the database settings.
func (d DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
