package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "EXCHANGE"

type Config interface {
	EnvConfig
	TransportConfig
	SessionConfig
	CacheConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetStateDir() string
}

type mainConfig struct {
	EnvVars
	Transport
	Session
	Cache
}

// New returns a Config built from defaults and EXCHANGE_* environment variables only.
func New() Config {
	v := viper.New()
	bind(v)
	return FromViper(v)
}

// Load reads cfgFile (or .exchangectl.yaml from the usual search paths when
// cfgFile is empty) on top of the defaults. A missing default file is not an error.
func Load(cfgFile string) (Config, error) {
	return LoadWith(viper.New(), cfgFile)
}

// LoadWith is Load on a caller-supplied viper instance, so CLI flags bound to v
// take precedence over file and environment values.
func LoadWith(v *viper.Viper, cfgFile string) (Config, error) {
	bind(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".exchangectl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/exchangectl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("[config Load] reading config: %w", err)
		}
	}

	return FromViper(v), nil
}

// FromViper wraps an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	return mainConfig{
		EnvVars:   EnvVars{v: v},
		Transport: Transport{v: v},
		Session:   Session{v: v},
		Cache:     Cache{v: v},
	}
}

func bind(v *viper.Viper) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(appNameKey, "Exchange")
	v.SetDefault(envKey, "DEV")
	v.SetDefault(baseURLKey, "http://localhost:5000")
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(stateDirKey, defaultStateDir())

	v.SetDefault(requestTimeoutKey, defaultRequestTimeout)
	v.SetDefault(rateLimitKey, 0.0)
	v.SetDefault(rateBurstKey, 1)
	v.SetDefault(userAgentKey, "exchangectl")

	v.SetDefault(refreshPolicyKey, RefreshPolicyCoalesce)
	v.SetDefault(loginRouteKey, "/login")

	v.SetDefault(cacheSizeKey, 256)
	v.SetDefault(cacheStaleTimeKey, defaultStaleTime)
}
