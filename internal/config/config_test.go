package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockTimeUnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    int
		expectError bool
	}{
		{"Valid morning time", "09:00", 540, false},
		{"Valid evening time", "17:30", 1050, false},
		{"Midnight", "00:00", 0, false},
		{"Last minute of day", "23:59", 1439, false},
		{"Invalid format", "0900", 0, true},
		{"Hour out of range", "24:00", 0, true},
		{"Minute out of range", "12:60", 0, true},
		{"Empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c ClockTime
			err := c.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, int(c))
			}
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	assert.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("ninety minutes")))
}

func TestLoadConfigFromBytes(t *testing.T) {
	tomlData := `
state_path = "/tmp/sitewarden-state.json"

[budget]
daily_limit = "45m"
reset_time = "06:00"
drain_interval = "5s"
warn_thresholds = [50, 20]

[schedule]
tick_interval = "30s"
`
	cfg, err := LoadConfigFromBytes([]byte(tomlData))
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/sitewarden-state.json", cfg.StatePath)
	assert.Equal(t, 45*time.Minute, cfg.Budget.DailyLimit.Duration())
	assert.Equal(t, 360, int(cfg.Budget.ResetTime))
	assert.Equal(t, []int{50, 20}, cfg.Budget.WarnThresholds)
	assert.Equal(t, 30*time.Second, cfg.Schedule.TickInterval.Duration())
	// Unset values fall back to defaults.
	assert.NotNil(t, cfg.Notify.Enabled)
	assert.True(t, *cfg.Notify.Enabled)
}

func TestSetDefault(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefault()

	assert.Equal(t, "/var/lib/sitewarden/state.json", cfg.StatePath)
	assert.Equal(t, 30*time.Minute, cfg.Budget.DailyLimit.Duration())
	assert.Equal(t, 10*time.Second, cfg.Budget.DrainInterval.Duration())
	assert.Equal(t, []int{25, 10}, cfg.Budget.WarnThresholds)
	assert.Equal(t, time.Minute, cfg.Schedule.TickInterval.Duration())
	assert.Equal(t, 0, int(cfg.Budget.ResetTime))
}
