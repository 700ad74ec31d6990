package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	refreshMarginVar  = "REFRESH_MARGIN"
	refreshTimeoutVar = "REFRESH_TIMEOUT"
	httpTimeoutVar    = "HTTP_TIMEOUT"
	refreshRateVar    = "REFRESH_RATE"
	refreshBurstVar   = "REFRESH_BURST"
)

type SessionConfig interface {
	GetRefreshMargin() time.Duration
	GetRefreshTimeout() time.Duration
	GetHTTPTimeout() time.Duration
	GetRefreshRate() float64
	GetRefreshBurst() int
}

type Session struct {
	v *viper.Viper
}

var _ SessionConfig = Session{}

// GetRefreshMargin is subtracted from the access token expiry when deciding staleness.
func (s Session) GetRefreshMargin() time.Duration {
	return s.v.GetDuration(refreshMarginVar)
}

func (s Session) GetRefreshTimeout() time.Duration {
	if d := s.v.GetDuration(refreshTimeoutVar); d > 0 {
		return d
	}
	return 30 * time.Second
}

func (s Session) GetHTTPTimeout() time.Duration {
	return s.v.GetDuration(httpTimeoutVar)
}

// GetRefreshRate is the sustained number of refresh episodes allowed per second.
func (s Session) GetRefreshRate() float64 {
	return s.v.GetFloat64(refreshRateVar)
}

func (s Session) GetRefreshBurst() int {
	return s.v.GetInt(refreshBurstVar)
}
