package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := New(nil)
	require.NoError(t, err)

	cfg.SetDefault("DISPATCH_QUEUE_CAPACITY", 10000)
	cfg.SetDefault("DISPATCH_RETRY_INTERVAL", "50ms")
	cfg.SetDefault("DISPATCH_CB_ENABLED", false)

	require.Equal(t, 10000, cfg.GetInt("DISPATCH_QUEUE_CAPACITY"))
	require.Equal(t, 50*time.Millisecond, cfg.GetDuration("DISPATCH_RETRY_INTERVAL"))
	require.False(t, cfg.GetBool("DISPATCH_CB_ENABLED"))
}

func TestEnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "7")

	cfg, err := New(nil)
	require.NoError(t, err)

	cfg.SetDefault("DISPATCH_MAX_ATTEMPTS", 4)
	require.Equal(t, 7, cfg.GetInt("DISPATCH_MAX_ATTEMPTS"))
}

func TestSetOverridesEverything(t *testing.T) {
	t.Setenv("SERVICE_NAME", "from-env")

	cfg, err := New(nil)
	require.NoError(t, err)

	cfg.Set("SERVICE_NAME", "explicit")
	require.Equal(t, "explicit", cfg.GetString("SERVICE_NAME"))
}
