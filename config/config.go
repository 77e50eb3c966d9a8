/*
Config package
*/
package config

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Logger is our contract for the logger
type Logger interface {
	Warn(msg string, fields ...slog.Attr)
}

// Config reads settings from .env file and ENV variables.
type Config struct {
	viper *viper.Viper
}

// New - read .env and ENV variables
func New(log Logger) (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("dotenv")
	v.AddConfigPath(".") // look for config in the working directory
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var typeErr viper.ConfigFileNotFoundError
		if !errors.As(err, &typeErr) {
			return nil, err
		}

		if log != nil {
			log.Warn("The .env file has not been found in the current directory")
		}
	}

	return &Config{viper: v}, nil
}

// SetDefault sets the default value for this key.
func (c *Config) SetDefault(key string, value any) {
	c.viper.SetDefault(key, value)
}

// Set overrides the value for this key.
func (c *Config) Set(key string, value any) {
	c.viper.Set(key, value)
}

func (c *Config) GetString(key string) string {
	return c.viper.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.viper.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	return c.viper.GetBool(key)
}

func (c *Config) GetFloat64(key string) float64 {
	return c.viper.GetFloat64(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	return c.viper.GetDuration(key)
}
