package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectInterval(t *testing.T) {
	opts := DefaultOptions()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	longAgo := now.Add(-24 * time.Hour)

	tests := []struct {
		name     string
		state    PolicyState
		wantMode Mode
		want     time.Duration
	}{
		{
			name:     "powered beats charging",
			state:    PolicyState{IsPoweredOn: true, IsCharging: true, LastActivity: longAgo, LastPoweredOff: longAgo},
			wantMode: ModePowered,
			want:     opts.PoweredInterval,
		},
		{
			name:     "charging",
			state:    PolicyState{IsCharging: true, LastActivity: now, LastPoweredOff: longAgo},
			wantMode: ModeCharging,
			want:     opts.ChargingInterval,
		},
		{
			name:     "recent activity",
			state:    PolicyState{LastActivity: now.Add(-9 * time.Minute), LastPoweredOff: longAgo},
			wantMode: ModeGracePeriod,
			want:     opts.GracePeriodInterval,
		},
		{
			name:     "grace boundary is inclusive",
			state:    PolicyState{LastActivity: now.Add(-10 * time.Minute), LastPoweredOff: longAgo},
			wantMode: ModeGracePeriod,
			want:     opts.GracePeriodInterval,
		},
		{
			name:     "recent power off",
			state:    PolicyState{LastActivity: longAgo, LastPoweredOff: now.Add(-time.Minute)},
			wantMode: ModeGracePeriod,
			want:     opts.GracePeriodInterval,
		},
		{
			name:     "idle uses configured interval",
			state:    PolicyState{LastActivity: longAgo, LastPoweredOff: longAgo},
			wantMode: ModeIdle,
			want:     opts.UpdateInterval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mode := SelectInterval(tt.state, opts, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMode, mode)
		})
	}
}

func TestSelectInterval_AfterShutdownWindow(t *testing.T) {
	// Reachable once the shutdown window outlasts the grace period.
	opts := DefaultOptions()
	opts.GracePeriodInterval = 5 * time.Minute
	opts.AfterShutdownInterval = 20 * time.Minute

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	state := PolicyState{
		LastActivity:   now.Add(-time.Hour),
		LastPoweredOff: now.Add(-10 * time.Minute),
	}

	got, mode := SelectInterval(state, opts, now)
	assert.Equal(t, ModeAfterShutdown, mode)
	assert.Equal(t, opts.AfterShutdownInterval, got)
}

func TestSelectInterval_IdleFollowsOption(t *testing.T) {
	opts := DefaultOptions()
	opts.UpdateInterval = 120 * time.Minute

	now := time.Now()
	got, mode := SelectInterval(PolicyState{
		LastActivity:   now.Add(-48 * time.Hour),
		LastPoweredOff: now.Add(-48 * time.Hour),
	}, opts, now)

	assert.Equal(t, ModeIdle, mode)
	assert.Equal(t, 120*time.Minute, got)
}
