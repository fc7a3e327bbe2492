package cpu

import (
	"github.com/hexaflex/dcff/devices"
)

// cacheable returns true if addr may be served from and installed into
// the cache. I/O registers and remapped windows are never cached.
func (c *CPU) cacheable(addr uint16) bool {
	if c.cache == nil || addr >= c.cfg.MMIOBase {
		return false
	}
	for _, r := range c.cfg.Uncached {
		if r.Contains(addr) {
			return false
		}
	}
	return true
}

// readMemory attempts to read the byte at addr. Returns false if the value
// is not available yet; the caller stalls and retries next tick.
func (c *CPU) readMemory(addr uint16, nocache bool) (byte, bool) {
	useCache := !nocache && c.cacheable(addr)

	if useCache {
		if v, ok := c.cache.Read(addr, c.status.SRC); ok {
			c.notifyRead(addr)
			return v, true
		}
	}

	p := &c.port
	if p.Processed {
		if p.State == devices.Fetch && p.Address == addr {
			data := p.Data
			p.Reset()
			c.busUsed = true

			if useCache {
				n := 1
				for n < 8 && addr+uint16(n) > addr && c.cacheable(addr+uint16(n)) {
					n++
				}
				c.cache.Write(addr, data, n, c.status.SWC)
			}

			c.notifyRead(addr)
			return byte(data), true
		}

		// Reply for a request we no longer need.
		p.Reset()
	}

	c.request(devices.Fetch, addr, 0)
	return 0, false
}

// writeMemory attempts to store v at addr. Returns false until the store
// has been acknowledged. The cache is updated on every attempt.
func (c *CPU) writeMemory(addr uint16, v byte, nocache bool) bool {
	if !nocache && c.cacheable(addr) {
		c.cache.Write(addr, uint64(v), 1, c.status.SWC)
	}

	p := &c.port
	if p.Processed {
		if p.State == devices.Store && p.Address == addr {
			p.Reset()
			c.busUsed = true
			return true
		}
		p.Reset()
	}

	c.request(devices.Store, addr, uint64(v))
	return false
}

// request issues a bus transaction, provided the port is free and no reply
// has been consumed this tick.
func (c *CPU) request(state devices.State, addr uint16, data uint64) {
	p := &c.port
	if p.State != devices.Idle || c.busUsed {
		return
	}

	p.State = state
	p.Address = addr
	p.Data = data
	p.Processed = false
}

func (c *CPU) notifyRead(addr uint16) {
	if c.cfg.OnRead != nil {
		c.cfg.OnRead(addr)
	}
}
