package timeutil

import (
	"sync"
	"time"
)

// SimClock is a simulation time base advanced in fixed steps. It is
// monotonically non-decreasing except across an explicit Reset.
type SimClock struct {
	mu    sync.Mutex
	step  time.Duration
	now   time.Duration
	steps uint64
}

// NewSimClock creates a clock at zero advancing by step per Step call.
func NewSimClock(step time.Duration) *SimClock {
	return &SimClock{step: step}
}

// Step advances simulation time by one step and returns it.
func (c *SimClock) Step() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	c.steps++
	return c.now
}

// Now returns the current simulation time.
func (c *SimClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// StepSize returns the fixed step.
func (c *SimClock) StepSize() time.Duration { return c.step }

// Steps returns the number of steps taken since the last Reset.
func (c *SimClock) Steps() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}

// Reset rewinds simulation time to zero, as a world reset does.
func (c *SimClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
	c.steps = 0
}
