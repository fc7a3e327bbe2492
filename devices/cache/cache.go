// Package cache implements the direct-mapped lookaside cache that sits
// between the CPU and the bus.
package cache

import (
	"math/bits"

	"github.com/pkg/errors"
)

// ErrCapacity is returned when the requested capacity is not a power of two.
var ErrCapacity = errors.New("cache capacity must be a power of two")

// Line holds a single cached byte along with its bookkeeping.
type Line struct {
	Address  uint16 // Address of the cached byte.
	Data     byte   // Cached value.
	Valid    bool   // Line holds data.
	Dirty    bool   // Line must not be served.
	Modified bool   // Reserved.
	Uses     uint8  // Saturating hit counter.
	Age      uint8  // Saturating access counter; reset on write.
}

// Cache is a direct-mapped, one byte per line cache.
type Cache struct {
	lines []Line
	mask  uint16
	Hit   uint64 // Number of read hits.
	Miss  uint64 // Number of read misses, skipped reads included.
}

// New creates a cache with the given number of lines.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 || capacity > 0x10000 || bits.OnesCount(uint(capacity)) != 1 {
		return nil, errors.Wrapf(ErrCapacity, "%d", capacity)
	}

	return &Cache{
		lines: make([]Line, capacity),
		mask:  uint16(capacity - 1),
	}, nil
}

// Capacity returns the number of lines.
func (c *Cache) Capacity() int {
	return len(c.lines)
}

// Line returns the line addr maps onto.
func (c *Cache) Line(addr uint16) Line {
	return c.lines[addr&c.mask]
}

// Read looks up the byte at addr. It returns false on a miss or when
// skip is set; the line's age advances either way.
func (c *Cache) Read(addr uint16, skip bool) (byte, bool) {
	line := &c.lines[addr&c.mask]
	if line.Age < 0xff {
		line.Age++
	}

	if skip || !line.Valid || line.Address != addr || line.Dirty {
		c.Miss++
		return 0, false
	}

	if line.Uses < 0xff {
		line.Uses++
	}
	c.Hit++
	return line.Data, true
}

// Write installs size bytes of data (little endian) starting at addr.
// The lines wrap around the address space. Nothing is written back to
// memory; the return value always reports that no dirty write happened.
func (c *Cache) Write(addr uint16, data uint64, size int, skip bool) bool {
	if skip {
		return false
	}

	for i := 0; i < size && i < 8; i++ {
		a := addr + uint16(i)
		line := &c.lines[a&c.mask]
		line.Address = a
		line.Data = byte(data >> (8 * i))
		line.Valid = true
		line.Dirty = false
		line.Age = 0
		line.Uses = 0
		if i == 0 {
			line.Uses = 1
		}
	}

	return false
}

// Invalidate drops every line.
func (c *Cache) Invalidate() {
	for i := range c.lines {
		c.lines[i].Valid = false
	}
}

// HitRate returns the fraction of reads that hit.
func (c *Cache) HitRate() float64 {
	total := c.Hit + c.Miss
	if total == 0 {
		return 0
	}
	return float64(c.Hit) / float64(total)
}
