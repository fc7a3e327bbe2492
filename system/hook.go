package system

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
)

// Condition determines when a hook fires.
type Condition byte

// Known hook conditions.
const (
	Change   Condition = iota // The observed value differs from the previous tick.
	Match                     // The observed value equals Hook.Value.
	ReadFrom                  // The cpu read the observed memory location.
	Always                    // Every tick.
)

func (c Condition) String() string {
	switch c {
	case Change:
		return "CHANGE"
	case Match:
		return "MATCH"
	case ReadFrom:
		return "READ_FROM"
	case Always:
		return "ALWAYS"
	}
	return "?"
}

// Pseudo registers for locations that are not a cpu register.
const (
	memoryLocation      arch.Register = -1
	instructionLocation arch.Register = -2
)

// Location identifies a watched register or memory range.
type Location struct {
	Register arch.Register
	Address  uint16
	Width    arch.Width
}

// RegisterAt watches a cpu register.
func RegisterAt(r arch.Register) Location {
	return Location{Register: r, Width: arch.U16}
}

// MemoryAt watches the byte or little endian word at addr.
func MemoryAt(addr uint16, w arch.Width) Location {
	return Location{Register: memoryLocation, Address: addr, Width: w}
}

// InstructionAt watches the address of the instruction the cpu is
// currently executing. Unlike pc, it only changes on instruction boundaries.
func InstructionAt() Location {
	return Location{Register: instructionLocation, Width: arch.U16}
}

// IsMemory returns true if l refers to memory.
func (l Location) IsMemory() bool {
	return l.Register == memoryLocation
}

func (l Location) String() string {
	switch {
	case l.Register == memoryLocation:
		return fmt.Sprintf("[%04x]:%s", l.Address, l.Width)
	case l.Register == instructionLocation:
		return "ip"
	}
	return l.Register.String()
}

// contains returns true if addr falls inside a memory location.
func (l Location) contains(addr uint16) bool {
	if !l.IsMemory() {
		return false
	}
	return addr == l.Address || (l.Width == arch.U16 && addr == l.Address+1)
}

// breakpointHook names the hooks created from image breakpoints.
const breakpointHook = "breakpoint"

// Action is run when a hook fires.
type Action func(*System, *Hook)

// Halt stops the cpu.
func Halt(s *System, h *Hook) {
	s.log.WithField("hook", h).Debug("halt")
	s.cpu.Halt()
}

// Hook watches a location and runs an action when its condition is met.
type Hook struct {
	Name      string
	Location  Location
	Condition Condition
	Value     uint16 // Operand for Match.
	Action    Action
	Hits      uint64 // Number of times the hook fired.
	last      uint16
}

func (h *Hook) String() string {
	if h.Name != "" {
		return h.Name
	}
	return fmt.Sprintf("%s %s %04x", h.Condition, h.Location, h.Value)
}

// AddHook registers h. Hooks run in registration order.
func (s *System) AddHook(h *Hook) error {
	if h.Action == nil {
		return errors.Errorf("hook %s: missing action", h)
	}
	if h.Condition > Always {
		return errors.Errorf("hook %s: unknown condition %d", h, h.Condition)
	}
	if h.Condition == ReadFrom && !h.Location.IsMemory() {
		return errors.Errorf("hook %s: READ_FROM requires a memory location", h)
	}
	if h.Location.Width != arch.U8 && h.Location.Width != arch.U16 {
		return errors.Errorf("hook %s: invalid width", h)
	}
	if r := h.Location.Register; r != memoryLocation && r != instructionLocation && (r < arch.R0 || r > arch.SR) {
		return errors.Errorf("hook %s: invalid register %d", h, r)
	}

	h.last = s.observe(h.Location)
	s.hooks = append(s.hooks, h)
	return nil
}

// RemoveHook unregisters h. Returns false if it was not registered.
func (s *System) RemoveHook(h *Hook) bool {
	for i, v := range s.hooks {
		if v == h {
			copy(s.hooks[i:], s.hooks[i+1:])
			s.hooks[len(s.hooks)-1] = nil
			s.hooks = s.hooks[:len(s.hooks)-1]
			return true
		}
	}
	return false
}

// removeHooks unregisters every hook with the given name.
func (s *System) removeHooks(name string) {
	kept := s.hooks[:0]
	for _, h := range s.hooks {
		if h.Name != name {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(s.hooks); i++ {
		s.hooks[i] = nil
	}
	s.hooks = kept
}

// Hooks returns the registered hooks.
func (s *System) Hooks() []*Hook {
	return s.hooks
}

// observe returns the current value at l.
func (s *System) observe(l Location) uint16 {
	switch {
	case l.Register == instructionLocation:
		return s.cpu.Intermediate().IP
	case l.IsMemory():
		if l.Width == arch.U8 {
			return uint16(s.Peek(l.Address))
		}
		return devices.PeekU16(s, l.Address)
	}
	return s.cpu.Register(l.Register)
}

// readFrom returns true if the cpu read from l during the last tick.
func (s *System) readFrom(l Location) bool {
	for _, addr := range s.reads {
		if l.contains(addr) {
			return true
		}
	}
	return false
}

// evaluateHooks runs every hook whose condition holds.
func (s *System) evaluateHooks() {
	for _, h := range s.hooks {
		v := s.observe(h.Location)

		var fire bool
		switch h.Condition {
		case Change:
			fire = v != h.last
		case Match:
			fire = v == h.Value
		case ReadFrom:
			fire = s.readFrom(h.Location)
		case Always:
			fire = true
		}
		h.last = v

		if fire {
			h.Hits++
			h.Action(s, h)
		}
	}
}

