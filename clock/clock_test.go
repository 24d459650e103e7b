package clock

import (
	"errors"
	"testing"
	"time"
)

func TestNew_TimePeriod(t *testing.T) {
	c := New(2000000) // 8080 @ 2MHz

	if c.timePeriod != 500*time.Nanosecond {
		t.Errorf("timePeriod: expected 500ns, got %v", c.timePeriod)
	}

	if c.totalTicks != -1 {
		t.Errorf("totalTicks: expected -1 (unbounded) by default, got %d", c.totalTicks)
	}
}

func TestSetSamplingFrequency_Unbounded(t *testing.T) {
	c := New(2000000)

	if err := c.SetSamplingFrequency(-1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.totalTicks != -1 {
		t.Errorf("expected unbounded totalTicks, got %d", c.totalTicks)
	}
}

func TestSetSamplingFrequency_EveryTick(t *testing.T) {
	c := New(2000000)

	if err := c.SetSamplingFrequency(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.totalTicks != 0 {
		t.Errorf("expected totalTicks 0 (pace every tick), got %d", c.totalTicks)
	}
}

func TestSetSamplingFrequency_Bounded(t *testing.T) {
	c := New(2000000)

	// 1000 Hz sampling => resolution = 1ms = 1_000_000ns; period = 500ns
	// totalTicks = 1_000_000 / 500 = 2000
	err := c.SetSamplingFrequency(1000)
	if err != nil && !errors.Is(err, ErrClockSamplingFreq) {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.totalTicks != 2000 {
		t.Errorf("expected totalTicks 2000, got %d", c.totalTicks)
	}
}

func TestTick_UnboundedResamplesWithoutPacing(t *testing.T) {
	c := New(2000000)
	_ = c.SetSamplingFrequency(-1)

	start := time.Now()
	elapsed := c.Tick(1000000)

	if elapsed < 0 {
		t.Errorf("elapsed should be non-negative, got %v", elapsed)
	}

	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("unbounded Tick should return immediately, took %v", time.Since(start))
	}
}

func TestTick_Monotonic(t *testing.T) {
	c := New(2000000)
	_ = c.SetSamplingFrequency(0)

	prev := time.Duration(-1)
	for i := 0; i < 5; i++ {
		elapsed := c.Tick(4)
		if elapsed < prev {
			t.Errorf("Tick elapsed went backwards: %v then %v", prev, elapsed)
		}
		prev = elapsed
	}
}

func TestReset_ClearsTickCountAndCarry(t *testing.T) {
	c := New(2000000)
	_ = c.SetSamplingFrequency(0)
	c.Tick(4)

	c.Reset()

	if c.tickCount != 0 {
		t.Errorf("expected tickCount reset to 0, got %d", c.tickCount)
	}

	if c.carried != 0 {
		t.Errorf("expected carried error reset to 0, got %v", c.carried)
	}
}
