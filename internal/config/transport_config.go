package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	requestTimeoutKey = "request_timeout"
	rateLimitKey      = "rate_limit"
	rateBurstKey      = "rate_burst"
	userAgentKey      = "user_agent"

	defaultRequestTimeout = 30 * time.Second
)

type TransportConfig interface {
	GetRequestTimeout() time.Duration
	GetRateLimit() float64
	GetRateBurst() int
	GetUserAgent() string
}

type Transport struct {
	v *viper.Viper
}

var _ TransportConfig = Transport{}

func (t Transport) GetRequestTimeout() time.Duration {
	timeout := t.v.GetDuration(requestTimeoutKey)
	if timeout <= 0 {
		return defaultRequestTimeout
	}
	return timeout
}

// GetRateLimit is requests per second; 0 disables client-side limiting.
func (t Transport) GetRateLimit() float64 {
	return t.v.GetFloat64(rateLimitKey)
}

func (t Transport) GetRateBurst() int {
	burst := t.v.GetInt(rateBurstKey)
	if burst < 1 {
		return 1
	}
	return burst
}

func (t Transport) GetUserAgent() string {
	return t.v.GetString(userAgentKey)
}
