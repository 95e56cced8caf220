package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	if c.Now().Before(before) {
		t.Error("RealClock.Now went backwards")
	}
	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClock_AdvanceFiresTicker(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	tk := c.NewTicker(10 * time.Millisecond)

	c.Advance(5 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(5 * time.Millisecond)
	select {
	case got := <-tk.C():
		if !got.Equal(start.Add(10 * time.Millisecond)) {
			t.Errorf("tick time = %v", got)
		}
	default:
		t.Fatal("ticker did not fire")
	}

	tk.Stop()
	c.Advance(time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockClock_Sleep(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewMockClock(start)
	c.Sleep(3 * time.Second)
	c.Sleep(time.Second)

	if got := c.Now().Sub(start); got != 4*time.Second {
		t.Errorf("elapsed = %v, want 4s", got)
	}
	if s := c.Sleeps(); len(s) != 2 || s[0] != 3*time.Second {
		t.Errorf("Sleeps = %v", s)
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Error("Set did not move the clock")
	}
}

func TestSimClock(t *testing.T) {
	c := NewSimClock(time.Millisecond)
	if c.Now() != 0 {
		t.Fatalf("Now = %v, want 0", c.Now())
	}
	for i := 0; i < 3; i++ {
		c.Step()
	}
	if c.Now() != 3*time.Millisecond || c.Steps() != 3 {
		t.Errorf("Now = %v, Steps = %d", c.Now(), c.Steps())
	}
	if c.StepSize() != time.Millisecond {
		t.Errorf("StepSize = %v", c.StepSize())
	}
	c.Reset()
	if c.Now() != 0 || c.Steps() != 0 {
		t.Errorf("after Reset Now = %v, Steps = %d", c.Now(), c.Steps())
	}
}
