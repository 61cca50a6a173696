package docker

import (
	"bytes"
	"sync"
)

// cappedBuffer keeps the first limit bytes written and silently drops the
// rest, so a runaway print loop cannot exhaust server memory. It never
// returns a short write, which keeps stdcopy draining the stream.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit <= 0 {
		c.buf.Write(p)
		return len(p), nil
	}
	room := c.limit - c.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) WriteString(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// status messages bypass the cap
	c.buf.WriteString(s)
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
