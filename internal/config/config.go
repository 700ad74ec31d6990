package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	SessionConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetLogLevel() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Session
	Store
}

// New returns a Config read from environment variables only.
func New() Config {
	c, _ := Load("")
	return c
}

// Load returns a Config read from the YAML file at path (when non-empty) with
// environment variables taking precedence over file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return mainConfig{EnvVars{v}, Session{v}, Store{v}}, fmt.Errorf("[config Load] failed to read %s: %w", path, err)
			}
		}
	}
	return mainConfig{EnvVars{v}, Session{v}, Store{v}}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(appNameVar, "Dashboard")
	v.SetDefault(apiBaseURLVar, "http://localhost:8000/api")
	v.SetDefault(logLevelVar, "info")
	v.SetDefault(envVar, "DEV")

	v.SetDefault(refreshMarginVar, "300s")
	v.SetDefault(refreshTimeoutVar, "30s")
	v.SetDefault(httpTimeoutVar, "30s")
	v.SetDefault(refreshRateVar, 1.0)
	v.SetDefault(refreshBurstVar, 5)

	v.SetDefault(storeBackendVar, "bolt")
	v.SetDefault(storePathVar, "./data/session.db")
	v.SetDefault(storeKeyVar, "user")
	v.SetDefault(redisAddrVar, "localhost:6379")
}
