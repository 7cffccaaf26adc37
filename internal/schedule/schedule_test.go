package schedule

import (
	"testing"
	"time"
)

func TestTimeBlockValidate(t *testing.T) {
	tests := []struct {
		name        string
		block       TimeBlock
		expectError bool
	}{
		{"Valid block", TimeBlock{Start: 540, End: 1020}, false},
		{"Single minute", TimeBlock{Start: 600, End: 600}, false},
		{"Whole day", TimeBlock{Start: 0, End: 1439}, false},
		{"Negative start", TimeBlock{Start: -1, End: 100}, true},
		{"End past last minute", TimeBlock{Start: 0, End: 1440}, true},
		{"Midnight-spanning", TimeBlock{Start: 1380, End: 120}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.block.Validate()
			if tt.expectError && err == nil {
				t.Errorf("expected error for block %+v", tt.block)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for block %+v: %v", tt.block, err)
			}
		})
	}
}

func TestTimeBlockContains_InclusiveBothEnds(t *testing.T) {
	b := TimeBlock{Start: 540, End: 1020} // 09:00-17:00
	if !b.Contains(540) {
		t.Errorf("start minute should be inside the block")
	}
	if !b.Contains(1020) {
		t.Errorf("end minute should be inside the block")
	}
	if b.Contains(539) || b.Contains(1021) {
		t.Errorf("minutes adjacent to the block should be outside")
	}
}

func TestNormalizeDays(t *testing.T) {
	days, err := NormalizeDays(map[string][]TimeBlock{
		"Monday": {{Start: 540, End: 1020}},
	})
	if err != nil {
		t.Fatalf("NormalizeDays failed: %v", err)
	}
	if len(days) != 7 {
		t.Errorf("expected seven day keys, got %d", len(days))
	}
	if len(days["monday"]) != 1 {
		t.Errorf("monday blocks not preserved")
	}
	if days["saturday"] != nil && len(days["saturday"]) != 0 {
		t.Errorf("saturday should be empty")
	}

	if _, err := NormalizeDays(map[string][]TimeBlock{"blursday": nil}); err == nil {
		t.Errorf("expected error for unknown day name")
	}
	if _, err := NormalizeDays(map[string][]TimeBlock{"monday": {{Start: 100, End: 50}}}); err == nil {
		t.Errorf("expected error for invalid block")
	}
}

func TestScheduleBlocksAt(t *testing.T) {
	days, _ := NormalizeDays(map[string][]TimeBlock{
		"monday": {{Start: 540, End: 1020}}, // 09:00-17:00
	})
	s := Schedule{ID: "s1", Name: "school", Days: days}

	monday10 := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	if !s.BlocksAt(monday10) {
		t.Errorf("Monday 10:00 should be blocked")
	}

	monday1701 := time.Date(2024, 6, 3, 17, 1, 0, 0, time.UTC)
	if s.BlocksAt(monday1701) {
		t.Errorf("Monday 17:01 should not be blocked")
	}

	saturday10 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if s.BlocksAt(saturday10) {
		t.Errorf("Saturday (empty day) should not be blocked")
	}
}

func TestScheduleBlocksAt_OverlappingBlocks(t *testing.T) {
	days, _ := NormalizeDays(map[string][]TimeBlock{
		"tuesday": {
			{Start: 600, End: 720},
			{Start: 660, End: 900}, // overlaps the first; union applies
		},
	})
	s := Schedule{Days: days}

	tuesday13 := time.Date(2024, 6, 4, 13, 0, 0, 0, time.UTC) // minute 780
	if !s.BlocksAt(tuesday13) {
		t.Errorf("instant inside the second block should be blocked")
	}
}
