package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	appNameVar    = "APP_NAME"
	apiBaseURLVar = "API_BASE_URL"
	logLevelVar   = "LOG_LEVEL"
	envVar        = "ENV"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

// GetAPIBaseURL returns the base URL of the dashboard API (e.g., "https://api.example.com/api").
// All token and resource paths are resolved against it, so it always ends with a slash.
func (e EnvVars) GetAPIBaseURL() string {
	base := e.v.GetString(apiBaseURLVar)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelVar)
}

func (e EnvVars) GetEnv() string {
	env := e.v.GetString(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}
