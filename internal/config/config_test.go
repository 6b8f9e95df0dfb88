package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	// registered so the values exported below are undone after the test
	for _, key := range []string{"LOCKOUT_THRESHOLD", "LOGIN_RATE_LIMIT", "TRUSTED_PROXIES", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOCKOUT_WINDOW", "2m")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"LOCKOUT_THRESHOLD=3\n"+
			"LOGIN_RATE_LIMIT=25\n"+
			"LOCKOUT_WINDOW=30m\n"+
			"TRUSTED_PROXIES=10.0.0.0/8,192.168.1.1\n"+
			"CORS_ALLOWED_ORIGINS=https://connect.udsm.ac.tz,https://admin.udsm.ac.tz\n",
	), 0o600))

	log, _ := test.NewNullLogger()
	loadDotEnv(path, log)

	cfg := LoadSecurityConfig()
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, 25, cfg.RateLimitMax)
	assert.Equal(t, 2*time.Minute, cfg.LockoutWindow, "environment wins over .env")
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)

	full := Load(log)
	assert.Equal(t, []string{"https://connect.udsm.ac.tz", "https://admin.udsm.ac.tz"}, full.AllowedOrigins)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	log, hook := test.NewNullLogger()
	loadDotEnv(filepath.Join(t.TempDir(), ".env"), log)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "Config file not found")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a", "b"}, splitList("a, ,b,"))
}
