// Package config loads server settings from defaults, an optional
// scidle.yaml and SCIDLE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// SCIDLE_SERVER_PORT.
const EnvPrefix = "SCIDLE"

// Config is the complete process configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sim     SimConfig     `mapstructure:"sim"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port        int      `mapstructure:"port" validate:"min=1,max=65535"`
	AdminKey    string   `mapstructure:"admin_key"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// Requests per second allowed per client IP.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"min=1"`
}

// SimConfig holds the real-time driver settings.
type SimConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval" validate:"min=1ms"`
	Speed            float64       `mapstructure:"speed" validate:"gte=0,lte=100"`
	Seed             int64         `mapstructure:"seed"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval" validate:"min=1s"`
}

// StorageConfig holds file locations.
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path" validate:"required"`
	SnapshotDir string `mapstructure:"snapshot_dir" validate:"required"`
}

// LoggingConfig holds the slog settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("sim.tick_interval", 16*time.Millisecond)
	v.SetDefault("sim.speed", 1.0)
	v.SetDefault("sim.seed", 42)
	v.SetDefault("sim.autosave_interval", 30*time.Second)
	v.SetDefault("storage.db_path", "data/scidle.db")
	v.SetDefault("storage.snapshot_dir", "data/snapshots")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration with priority env > file > defaults. An empty
// path searches for scidle.yaml in the working directory and ./configs;
// a missing search file is not an error, a missing explicit path is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scidle")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every field against its validation tag.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
