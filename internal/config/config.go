package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	"github.com/franckalain/foodanalysis/internal/imagestore"
	"github.com/franckalain/foodanalysis/internal/logger"
	"github.com/franckalain/foodanalysis/internal/ml"
	"github.com/franckalain/foodanalysis/internal/notify"
	"github.com/franckalain/foodanalysis/internal/store"
)

// ConfigPathEnv names the environment variable holding the config file path.
const ConfigPathEnv = "FOODANALYSIS_CONFIG"

// Config holds all application configuration
type Config struct {
	Server struct {
		Port           string `mapstructure:"port" json:"port"`
		StaticDir      string `mapstructure:"static_dir" json:"static_dir"` // empty serves the embedded page
		UploadDir      string `mapstructure:"upload_dir" json:"upload_dir"`
		MaxUploadBytes int64  `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`
	} `mapstructure:"server" json:"server"`

	Store  store.Config      `mapstructure:"store" json:"store"`
	ML     ml.Config         `mapstructure:"ml" json:"ml"`
	Images imagestore.Config `mapstructure:"images" json:"images"`
	MQTT   notify.MQTTConfig `mapstructure:"mqtt" json:"mqtt"`
	Log    logger.Config     `mapstructure:"log" json:"log"`
}

// Addr is the listen address for Server.Port.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

var envBindings = []struct {
	key string
	env string
}{
	{"server.port", "PORT"},
	{"ml.google.project_id", "GOOGLE_PROJECT_ID"},
	{"ml.google.location", "GOOGLE_LOCATION"},
	{"ml.google.credentials_file", "GOOGLE_CREDENTIALS_FILE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.max_upload_bytes", 5<<20)

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.path", ":memory:")

	v.SetDefault("ml.type", "mock")
	v.SetDefault("ml.google.project_id", "")
	v.SetDefault("ml.google.location", "")
	v.SetDefault("ml.google.credentials_file", "")
	v.SetDefault("ml.google.model", "")

	v.SetDefault("images.type", "disk")
	v.SetDefault("images.s3.bucket", "")
	v.SetDefault("images.s3.region", "")
	v.SetDefault("images.s3.endpoint", "")
	v.SetDefault("images.s3.access_key", "")
	v.SetDefault("images.s3.secret_key", "")
	v.SetDefault("images.s3.prefix", "")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "foodanalysis/latest")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
}

// LoadConfig loads configuration from a JSON file, applying defaults and
// environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is not set")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}
	return nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
