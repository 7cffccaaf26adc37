// Package schedule holds the weekly schedule model and the evaluator
// that turns wall-clock time into a deny/allow verdict.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidBlock     = errors.New("invalid time block")
)

// TimeBlock is one blocked span within a day, inclusive minute-of-day
// on both ends. Blocks spanning midnight are not supported: a span
// crossing 00:00 must be expressed as two blocks on adjacent days.
type TimeBlock struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (b TimeBlock) Validate() error {
	if b.Start < 0 || b.End > 1439 {
		return fmt.Errorf("%w: minutes must be within 0..1439", ErrInvalidBlock)
	}
	if b.Start > b.End {
		return fmt.Errorf("%w: start %d after end %d (midnight-spanning blocks are not supported)", ErrInvalidBlock, b.Start, b.End)
	}
	return nil
}

// Contains reports whether the minute-of-day falls inside the block,
// inclusive on both ends.
func (b TimeBlock) Contains(minute int) bool {
	return minute >= b.Start && minute <= b.End
}

// Schedule is a named weekly schedule. Days always carries all seven
// weekday keys; a day with no blocks means nothing is blocked that day.
// Blocks may overlap or be unordered; evaluation treats them as a union
// of closed intervals.
type Schedule struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	CreatedAt time.Time              `json:"created_at"`
	Days      map[string][]TimeBlock `json:"days"`
}

var dayKeys = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayKey maps a time.Weekday to the day name used in the Days map.
func DayKey(d time.Weekday) string {
	return dayKeys[int(d)]
}

// NormalizeDays returns a seven-key day map, validating every block.
// Unknown day names are rejected.
func NormalizeDays(days map[string][]TimeBlock) (map[string][]TimeBlock, error) {
	out := make(map[string][]TimeBlock, 7)
	for _, key := range dayKeys {
		out[key] = nil
	}
	for name, blocks := range days {
		key := strings.ToLower(name)
		if _, ok := out[key]; !ok {
			return nil, fmt.Errorf("unknown day %q", name)
		}
		for _, b := range blocks {
			if err := b.Validate(); err != nil {
				return nil, fmt.Errorf("day %s: %w", key, err)
			}
		}
		out[key] = blocks
	}
	return out, nil
}

// BlocksAt reports whether the schedule blocks the given instant.
func (s *Schedule) BlocksAt(now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	for _, block := range s.Days[DayKey(now.Weekday())] {
		if block.Contains(minute) {
			return true
		}
	}
	return false
}
