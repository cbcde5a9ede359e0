package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 60*time.Minute, opts.UpdateInterval)
	assert.Equal(t, 10*time.Minute, opts.ChargingInterval)
	assert.Equal(t, 15*time.Minute, opts.PoweredInterval)
	assert.Equal(t, 2*time.Minute, opts.AfterShutdownInterval)
	assert.Equal(t, 10*time.Minute, opts.GracePeriodInterval)
	assert.Equal(t, 15*time.Second, opts.AfterActionDelay)
	assert.Equal(t, 5*time.Minute, opts.ActionInterval(ActionLockUnlock))
	assert.Equal(t, 15*time.Minute, opts.ActionInterval(ActionAC))
	assert.Equal(t, uint(5), opts.Retry.Limit)
	assert.Equal(t, 15*time.Second, opts.Retry.Backoff)
	assert.False(t, opts.Retry.Exponential)
	assert.Len(t, opts.ActionIntervals, len(Actions))
	assert.NoError(t, opts.Validate())
}

func TestOptions_Apply(t *testing.T) {
	opts := DefaultOptions()

	next, err := opts.Apply(map[string]any{
		"update_interval":              120,
		"charging_update_interval":     float64(5),
		"powered_update_interval":      "20",
		"after_action_delay":           30,
		"lock_unlock_long_interval":    2,
		"retry_limit":                  3,
		"retry_backoff":                "10s",
		"retry_exponential":            true,
		"has_sunroof":                  "true",
		"grace_period_update_interval": 15 * time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, 120*time.Minute, next.UpdateInterval)
	assert.Equal(t, 5*time.Minute, next.ChargingInterval)
	assert.Equal(t, 20*time.Minute, next.PoweredInterval)
	assert.Equal(t, 30*time.Second, next.AfterActionDelay)
	assert.Equal(t, 2*time.Minute, next.ActionInterval(ActionLockUnlock))
	assert.Equal(t, uint(3), next.Retry.Limit)
	assert.Equal(t, 10*time.Second, next.Retry.Backoff)
	assert.True(t, next.Retry.Exponential)
	assert.True(t, next.Capabilities.HasSunroof)
	assert.Equal(t, 15*time.Minute, next.GracePeriodInterval)

	// The receiver is untouched
	assert.Equal(t, 60*time.Minute, opts.UpdateInterval)
	assert.Equal(t, 5*time.Minute, opts.ActionInterval(ActionLockUnlock))
}

func TestOptions_ApplyRejectsAll(t *testing.T) {
	opts := DefaultOptions()

	next, err := opts.Apply(map[string]any{
		"update_interval":  30,
		"bogus_interval":   5,
		"retry_limit":      0,
		"has_sunroof":      "maybe",
		"ac_long_interval": -1,
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "bogus_interval: unknown option")
	assert.Contains(t, msg, "retry_limit")
	assert.Contains(t, msg, "has_sunroof")
	assert.Contains(t, msg, "ac_long_interval")

	// Nothing is applied when any override fails
	assert.Equal(t, 60*time.Minute, next.UpdateInterval)
}

func TestOptions_ActionIntervalUnknown(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, opts.AfterActionDelay, opts.ActionInterval(Action("teleport")))
}

func TestOptions_Validate(t *testing.T) {
	opts := DefaultOptions()
	opts.UpdateInterval = 0
	opts.Retry.Limit = 0

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update_interval must be positive")
	assert.Contains(t, err.Error(), "retry_limit must be at least 1")
}

func TestAction_OptionKey(t *testing.T) {
	assert.Equal(t, "charging_port_lock_long_interval", ActionChargingPortLock.OptionKey())
}
