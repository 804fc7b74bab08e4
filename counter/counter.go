package counter

import (
	"fmt"
)

// Counter is a 64 bit counter
type Counter struct {
	count uint64
}

// New creates a new 64 bit counter
func New() *Counter {
	return new(Counter)
}

// Reset sets the counter back to zero
func (c *Counter) Reset() {
	c.count = 0
}

// Increment adds one to the counter
func (c *Counter) Increment() {
	c.count++
}

// Value returns the current count
func (c *Counter) Value() uint64 {
	return c.count
}

// String implements strings.Stringer
func (c *Counter) String() string {
	return fmt.Sprintf("%d", c.count)
}
