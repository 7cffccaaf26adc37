package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration wraps time.Duration so TOML values like "10s" or "1m30s"
// parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// ClockTime is a minute-of-day parsed from "HH:MM" (0..1439).
type ClockTime int

func (c *ClockTime) UnmarshalText(text []byte) error {
	str := string(text)
	parts := strings.Split(str, ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid time format %q: expected 'HH:MM'", str)
	}

	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return fmt.Errorf("invalid time values in %q: %v, %v", str, err1, err2)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("time %q out of range", str)
	}

	*c = ClockTime(hour*60 + minute)
	return nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

type BudgetConfig struct {
	DailyLimit     Duration  `toml:"daily_limit"`
	ResetTime      ClockTime `toml:"reset_time"`
	DrainInterval  Duration  `toml:"drain_interval"`
	WarnThresholds []int     `toml:"warn_thresholds"`
}

type ScheduleConfig struct {
	TickInterval Duration `toml:"tick_interval"`
}

type NotifyConfig struct {
	Enabled *bool `toml:"enabled"`
}

type Config struct {
	StatePath string         `toml:"state_path"`
	Budget    BudgetConfig   `toml:"budget"`
	Schedule  ScheduleConfig `toml:"schedule"`
	Notify    NotifyConfig   `toml:"notify"`
}

// SetDefault fills unset fields with the shipped defaults.
func (c *Config) SetDefault() {
	if c.StatePath == "" {
		c.StatePath = "/var/lib/sitewarden/state.json"
	}
	if c.Budget.DailyLimit == 0 {
		c.Budget.DailyLimit = Duration(30 * time.Minute)
	}
	if c.Budget.DrainInterval == 0 {
		c.Budget.DrainInterval = Duration(10 * time.Second)
	}
	if c.Budget.WarnThresholds == nil {
		c.Budget.WarnThresholds = []int{25, 10}
	}
	if c.Schedule.TickInterval == 0 {
		c.Schedule.TickInterval = Duration(1 * time.Minute)
	}
	if c.Notify.Enabled == nil {
		defaultVal := true
		c.Notify.Enabled = &defaultVal
	}
}

func LoadConfigFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file means run on defaults.
			cfg := &Config{}
			cfg.SetDefault()
			return cfg, nil
		}
		return nil, err
	}
	defer file.Close()

	var cfg Config
	if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.SetDefault()
	return &cfg, nil
}

func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.SetDefault()
	return &cfg, nil
}
