package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	refreshPolicyKey = "refresh_policy"
	loginRouteKey    = "login_route"
)

// Refresh policies for a 401 that arrives while another refresh is in flight.
const (
	RefreshPolicyCoalesce = "coalesce"  // wait for the in-flight refresh, then retry once
	RefreshPolicyFailFast = "fail-fast" // fail immediately without refreshing
)

type SessionConfig interface {
	GetRefreshPolicy() string
	GetLoginRoute() string
}

type Session struct {
	v *viper.Viper
}

var _ SessionConfig = Session{}

func (s Session) GetRefreshPolicy() string {
	switch strings.ToLower(s.v.GetString(refreshPolicyKey)) {
	case RefreshPolicyFailFast, "failfast":
		return RefreshPolicyFailFast
	default:
		return RefreshPolicyCoalesce
	}
}

func (s Session) GetLoginRoute() string {
	return s.v.GetString(loginRouteKey)
}
