package clock

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func TestManual_NowAdvances(t *testing.T) {
	c := Manual(t0)
	if !c.Now().Equal(t0) {
		t.Fatalf("expected %v, got %v", t0, c.Now())
	}
	c.Advance(90 * time.Second)
	if want := t0.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Now())
	}
}

func TestManual_AfterFiresAtDeadline(t *testing.T) {
	c := Manual(t0)
	ch := c.After(time.Minute)

	c.Advance(59 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before the deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case at := <-ch:
		if !at.Equal(t0.Add(time.Minute)) {
			t.Errorf("fired at %v", at)
		}
	default:
		t.Fatal("did not fire at the deadline")
	}
}

func TestManual_TickerRearmsAndDropsMissedTicks(t *testing.T) {
	c := Manual(t0)
	tk := c.NewTicker(time.Minute)
	defer tk.Stop()

	// A big jump delivers one tick, like a real ticker with a full
	// channel.
	c.Advance(5 * time.Minute)
	select {
	case <-tk.Chan():
	default:
		t.Fatal("expected a tick")
	}
	select {
	case <-tk.Chan():
		t.Fatal("missed ticks must be dropped, not queued")
	default:
	}

	// Re-armed past the current instant.
	c.Advance(time.Minute)
	select {
	case <-tk.Chan():
	default:
		t.Fatal("expected the re-armed tick")
	}
}

func TestManual_StoppedTickerStaysQuiet(t *testing.T) {
	c := Manual(t0)
	tk := c.NewTicker(time.Minute)
	tk.Stop()

	c.Advance(2 * time.Minute)
	select {
	case <-tk.Chan():
		t.Fatal("stopped ticker fired")
	default:
	}
}
