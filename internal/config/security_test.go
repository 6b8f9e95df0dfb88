package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadSecurityConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadSecurityConfig()
		assert.Equal(t, 10, cfg.RateLimitMax)
		assert.Equal(t, 5*time.Minute, cfg.RateLimitWindow)
		assert.Equal(t, 5, cfg.LockoutThreshold)
		assert.Equal(t, 5*time.Minute, cfg.LockoutWindow)
		assert.Equal(t, 1000.0, cfg.GeofenceDefaultRadiusM)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("LOGIN_RATE_LIMIT", "20")
		t.Setenv("LOCKOUT_WINDOW", "10m")
		t.Setenv("GEOFENCE_DEFAULT_RADIUS_M", "250")

		cfg := LoadSecurityConfig()
		assert.Equal(t, 20, cfg.RateLimitMax)
		assert.Equal(t, 10*time.Minute, cfg.LockoutWindow)
		assert.Equal(t, 250.0, cfg.GeofenceDefaultRadiusM)
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		t.Setenv("LOCKOUT_THRESHOLD", "-3")
		t.Setenv("LOGIN_RATE_LIMIT", "many")
		t.Setenv("LOGIN_RATE_WINDOW", "soon")
		t.Setenv("GEOFENCE_DEFAULT_RADIUS_M", "0")

		cfg := LoadSecurityConfig()
		assert.Equal(t, 5, cfg.LockoutThreshold)
		assert.Equal(t, 10, cfg.RateLimitMax)
		assert.Equal(t, 5*time.Minute, cfg.RateLimitWindow)
		assert.Equal(t, 1000.0, cfg.GeofenceDefaultRadiusM)
	})
}
