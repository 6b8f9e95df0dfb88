package config

import (
	"time"

	"github.com/spf13/viper"
)

// SecurityConfig holds the login gate and visibility tunables.
type SecurityConfig struct {
	RateLimitMax           int
	RateLimitWindow        time.Duration
	LockoutThreshold       int
	LockoutWindow          time.Duration
	GeofenceDefaultRadiusM float64
	TrustedProxies         []string
}

const (
	defaultRateLimitMax     = 10
	defaultRateLimitWindow  = 5 * time.Minute
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 5 * time.Minute
	defaultGeofenceRadiusM  = 1000.0
)

// LoadSecurityConfig reads the security keys through viper. Zero, negative and
// unparsable values fall back to the defaults.
func LoadSecurityConfig() *SecurityConfig {
	viper.BindEnv("security.rate_limit_max", "LOGIN_RATE_LIMIT")
	viper.BindEnv("security.rate_limit_window", "LOGIN_RATE_WINDOW")
	viper.BindEnv("security.lockout_threshold", "LOCKOUT_THRESHOLD")
	viper.BindEnv("security.lockout_window", "LOCKOUT_WINDOW")
	viper.BindEnv("security.geofence_radius_m", "GEOFENCE_DEFAULT_RADIUS_M")
	viper.BindEnv("security.trusted_proxies", "TRUSTED_PROXIES")

	viper.SetDefault("security.rate_limit_max", defaultRateLimitMax)
	viper.SetDefault("security.rate_limit_window", defaultRateLimitWindow)
	viper.SetDefault("security.lockout_threshold", defaultLockoutThreshold)
	viper.SetDefault("security.lockout_window", defaultLockoutWindow)
	viper.SetDefault("security.geofence_radius_m", defaultGeofenceRadiusM)

	return &SecurityConfig{
		RateLimitMax:           positiveInt("security.rate_limit_max", defaultRateLimitMax),
		RateLimitWindow:        positiveDuration("security.rate_limit_window", defaultRateLimitWindow),
		LockoutThreshold:       positiveInt("security.lockout_threshold", defaultLockoutThreshold),
		LockoutWindow:          positiveDuration("security.lockout_window", defaultLockoutWindow),
		GeofenceDefaultRadiusM: positiveFloat("security.geofence_radius_m", defaultGeofenceRadiusM),
		TrustedProxies:         splitList(viper.GetString("security.trusted_proxies")),
	}
}

func positiveInt(key string, defaultVal int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return defaultVal
}

func positiveFloat(key string, defaultVal float64) float64 {
	if v := viper.GetFloat64(key); v > 0 {
		return v
	}
	return defaultVal
}

func positiveDuration(key string, defaultVal time.Duration) time.Duration {
	if v := viper.GetDuration(key); v > 0 {
		return v
	}
	return defaultVal
}
