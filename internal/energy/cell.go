package energy

import "sync"

// Cell holds the running energy total in mWh. The telemetry goroutine is its
// only writer; samplers read it through the same lock.
type Cell struct {
	mu    sync.Mutex
	total float64
}

// Add increments the total by delta.
func (c *Cell) Add(delta float64) {
	c.mu.Lock()
	c.total += delta
	c.mu.Unlock()
}

// Load returns the current total.
func (c *Cell) Load() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
