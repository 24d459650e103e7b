// Package clock paces emulated CPU time against the wall clock.
//
// A Clock accumulates CPU tick deltas fed to it by the run loop and, once
// enough ticks have accrued to cross the configured sampling period, sleeps
// and then busy-spins the remainder so that emulated time tracks real time
// within a bounded error, carried forward across calls to compensate for
// oversleep on coarse host timers.
package clock

import (
	"runtime"
	"time"
)

// spinPercentageToSleep is the fraction of the remaining wait that is spent
// in a coarse sleep before the busy-spin phase takes over for the last,
// precise stretch.
const spinPercentageToSleep = 0.7

// minSleepDuration is the smallest wait worth handing to the host scheduler;
// anything shorter is spun instead, since sleep/wake overhead would dominate.
const minSleepDuration = time.Millisecond

// estimatedResolution approximates the host's minimum timer granularity.
// Go exposes no portable equivalent of clock_getres/NtQueryTimerResolution,
// so this is a conservative per-platform estimate rather than a queried
// value.
func estimatedResolution() time.Duration {
	if runtime.GOOS == "windows" {
		return 500 * time.Microsecond
	}
	return 100 * time.Microsecond
}

// Clock converts CPU tick counts into paced wall-clock delay.
type Clock struct {
	speed      uint64
	timePeriod time.Duration // 1e9/speed nanoseconds per tick

	maxResolution time.Duration
	errored       bool

	totalTicks int64 // ticks per sampling period; <0 unbounded, 0 every tick
	tickCount  int64

	epoch    time.Time
	lastTime time.Time
	carried  time.Duration
}

// New constructs a Clock for a CPU running at speed Hz (ticks per second).
func New(speed uint64) *Clock {
	c := &Clock{
		speed:         speed,
		timePeriod:    time.Duration(1e9 / speed),
		maxResolution: estimatedResolution(),
		totalTicks:    -1,
	}
	c.Reset()
	return c
}

// Speed returns the configured CPU frequency in Hz.
func (c *Clock) Speed() uint64 {
	return c.speed
}

// SamplingPeriodTicks returns the number of CPU ticks the clock paces
// against in one sampling period, as last set by SetSamplingFrequency: -1
// for unbounded (no pacing), 0 for "every tick", otherwise the tick count
// of the configured period. The machine package scales this by its ISR
// poll-frequency multiplier to derive how often to poll for interrupts.
func (c *Clock) SamplingPeriodTicks() int64 {
	return c.totalTicks
}

// SetSamplingFrequency configures how often Tick should pace against the
// wall clock. hz > 0 paces every 1/hz seconds of emulated time; hz == 0
// paces on every call to Tick; hz < 0 disables pacing entirely.
//
// ErrClockSamplingFreq is returned (after still applying the setting,
// best-effort) when the clock was constructed in an errored state, or when
// the requested interval is finer than the host's estimated timer
// resolution.
func (c *Clock) SetSamplingFrequency(hz float64) error {
	switch {
	case hz > 0 && c.timePeriod > 0:
		resolution := time.Duration(1e9 / hz)
		c.totalTicks = int64(resolution / c.timePeriod)

		if resolution < c.maxResolution {
			return ErrClockSamplingFreq
		}
	case hz == 0:
		c.totalTicks = 0
	default:
		c.totalTicks = -1
	}

	if c.errored {
		return ErrClockSamplingFreq
	}
	return nil
}

// Reset re-epochs the clock to the current wall-clock time.
func (c *Clock) Reset() {
	c.epoch = time.Now()
	c.lastTime = c.epoch
	c.tickCount = 0
	c.carried = 0
}

// Tick accounts for n CPU ticks having elapsed and, once the configured
// sampling period has been crossed, paces execution via sleep+spin. It
// returns the wall-clock time elapsed between Reset and the most recent
// sample; the sample is refreshed on every unbounded call and whenever a
// sampling period is paced, not on calls that stay inside a period.
func (c *Clock) Tick(n int64) time.Duration {
	if c.totalTicks < 0 {
		c.lastTime = time.Now()
		return c.lastTime.Sub(c.epoch)
	}

	c.tickCount += n

	if c.tickCount < c.totalTicks {
		return c.lastTime.Sub(c.epoch)
	}

	target := time.Duration(c.tickCount)*c.timePeriod - time.Since(c.lastTime) + c.carried
	target = c.sleepFor(target)
	c.carried = c.spinFor(target)

	c.tickCount = 0
	c.lastTime = time.Now()
	return c.lastTime.Sub(c.epoch)
}

// sleepFor hands the bulk of target to the host scheduler and returns the
// remainder still owed after the sleep actually returned.
func (c *Clock) sleepFor(target time.Duration) time.Duration {
	if target < minSleepDuration {
		return target
	}

	start := time.Now()
	time.Sleep(time.Duration(float64(target) * spinPercentageToSleep))
	return target - time.Since(start)
}

// spinFor busy-waits out the remainder of target and returns any residual
// (negative when overshot) to be carried forward into the next Tick.
func (c *Clock) spinFor(target time.Duration) time.Duration {
	if target <= 0 {
		return target
	}

	start := time.Now()
	end := start.Add(target)

	for time.Now().Before(end) {
	}

	return end.Sub(time.Now())
}
