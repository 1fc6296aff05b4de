// Package config loads tool configuration from defaults, an optional
// config.yaml and GEOBOUNDS_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	IndexFile string `mapstructure:"index_file"`
	Regions   string `mapstructure:"regions"`

	Demo    DemoConfig    `mapstructure:"demo"`
	PostGIS PostGISConfig `mapstructure:"postgis"`
	Network NetworkConfig `mapstructure:"network"`
}

type DemoConfig struct {
	Points            int `mapstructure:"points"`
	BenchmarkDuration int `mapstructure:"benchmark_duration"`
}

type PostGISConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type NetworkConfig struct {
	SimulatedLatencyMs int `mapstructure:"simulated_latency_ms"`
}

// Load reads configuration. A missing config.yaml is fine; defaults
// and environment variables still apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("index_file", "data/index.gob")
	v.SetDefault("regions", "regions.yaml")
	v.SetDefault("demo.points", 100000)
	v.SetDefault("demo.benchmark_duration", 5)
	v.SetDefault("postgis.host", "localhost")
	v.SetDefault("postgis.port", 5432)
	v.SetDefault("postgis.user", "postgres")
	v.SetDefault("postgis.password", "postgres")
	v.SetDefault("postgis.database", "geodb")
	v.SetDefault("network.simulated_latency_ms", 0)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GEOBOUNDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
