package sampler

import "time"

// Counter measures cycles per window. It is not safe for concurrent use;
// the controller guards it with its own mutex.
type Counter struct {
	window      time.Duration
	count       int
	windowStart time.Time
}

// NewCounter creates a counter publishing once per window.
func NewCounter(window time.Duration) *Counter {
	if window <= 0 {
		window = time.Second
	}
	return &Counter{window: window}
}

// Reset zeroes the count and starts a new window at now.
func (c *Counter) Reset(now time.Time) {
	c.count = 0
	c.windowStart = now
}

// Tick records one cycle at now. Once the window has elapsed, the tick closes
// it instead of being counted: it returns the count of the closed window with
// publish=true and starts a new, empty window at now.
func (c *Counter) Tick(now time.Time) (fps int, publish bool) {
	if c.windowStart.IsZero() {
		c.windowStart = now
	}
	if now.Sub(c.windowStart) >= c.window {
		fps = c.count
		c.Reset(now)
		return fps, true
	}
	c.count++
	return 0, false
}

// Count returns the ticks counted in the current window.
func (c *Counter) Count() int {
	return c.count
}
