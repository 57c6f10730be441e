package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	DataDir       string `mapstructure:"DATA_DIR"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	APIKeyHash    string `mapstructure:"API_KEY_HASH"`
	Timezone      string `mapstructure:"TIMEZONE"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_PORT", ":8080")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("JWT_SECRET", "dev-secret-change-me")
	viper.SetDefault("API_KEY_HASH", "")
	viper.SetDefault("TIMEZONE", "Local")

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}

// Location resolves the configured timezone; day boundaries follow it. An
// unknown name falls back to the process-local zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
