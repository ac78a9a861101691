package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appNameKey  = "app_name"
	envKey      = "env"
	baseURLKey  = "base_url"
	logLevelKey = "log_level"
	stateDirKey = "state_dir"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameKey)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString(envKey))
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the exchange API origin (e.g., "https://exchange.example.com")
// without a trailing slash. All /api/... paths are resolved against it.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.v.GetString(baseURLKey), "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelKey)
}

// GetStateDir is where the persisted refresh cookie lives.
func (e EnvVars) GetStateDir() string {
	return e.v.GetString(stateDirKey)
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".exchangectl"
	}
	return filepath.Join(dir, "exchangectl")
}
