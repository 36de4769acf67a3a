package camera

import "sync"

// latestCell holds the newest frame. Writers swap a pointer under the lock;
// a frame replaced before anyone read it counts as dropped.
type latestCell struct {
	mu        sync.Mutex
	frame     *Frame
	delivered bool
}

// store publishes f and reports whether an unread frame was overwritten.
func (c *latestCell) store(f *Frame) (dropped bool) {
	c.mu.Lock()
	dropped = c.frame != nil && !c.delivered
	c.frame = f
	c.delivered = false
	c.mu.Unlock()
	return dropped
}

func (c *latestCell) load() (Frame, bool) {
	c.mu.Lock()
	f := c.frame
	c.delivered = true
	c.mu.Unlock()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

func (c *latestCell) reset() {
	c.mu.Lock()
	c.frame = nil
	c.delivered = false
	c.mu.Unlock()
}
