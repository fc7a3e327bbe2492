package cpu

import (
	"strings"

	"github.com/hexaflex/dcff/arch"
)

// Status holds the CPU flags.
type Status struct {
	Z   bool // Zero / equal.
	FZ  bool // Float zero; mirrors Z.
	L   bool // Signed less.
	UL  bool // Unsigned less.
	FL  bool // f16 less.
	BL  bool // bf16 less.
	AO  bool // Arithmetic overflow or carry.
	SRC bool // Skip read cache.
	SWC bool // Skip write cache.
	MI  bool // Mask interrupts.
	MNI bool // Mask interrupts while a multi-step memory sequence is in flight.
}

var statusBits = [...]struct {
	bit uint16
	get func(*Status) *bool
}{
	{arch.FlagZ, func(s *Status) *bool { return &s.Z }},
	{arch.FlagFZ, func(s *Status) *bool { return &s.FZ }},
	{arch.FlagL, func(s *Status) *bool { return &s.L }},
	{arch.FlagUL, func(s *Status) *bool { return &s.UL }},
	{arch.FlagFL, func(s *Status) *bool { return &s.FL }},
	{arch.FlagBL, func(s *Status) *bool { return &s.BL }},
	{arch.FlagAO, func(s *Status) *bool { return &s.AO }},
	{arch.FlagSRC, func(s *Status) *bool { return &s.SRC }},
	{arch.FlagSWC, func(s *Status) *bool { return &s.SWC }},
	{arch.FlagMI, func(s *Status) *bool { return &s.MI }},
	{arch.FlagMNI, func(s *Status) *bool { return &s.MNI }},
}

// Encode returns the wire form of the status register.
func (s Status) Encode() uint16 {
	var v uint16
	for _, b := range statusBits {
		if *b.get(&s) {
			v |= b.bit
		}
	}
	return v
}

// Decode sets the flags from the wire form of the status register.
// Only the bits selected by mask are changed.
func (s *Status) Decode(v, mask uint16) {
	for _, b := range statusBits {
		if mask&b.bit != 0 {
			*b.get(s) = v&b.bit != 0
		}
	}
}

func (s Status) String() string {
	var names []string
	for i, name := range strings.Fields("Z FZ L UL FL BL AO SRC SWC MI MNI") {
		if *statusBits[i].get(&s) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "|")
}
