package cpu

import (
	"github.com/hexaflex/dcff/arch"
)

// Intermediate holds the decoded state of the in-flight instruction.
type Intermediate struct {
	IP      uint16    // Instruction address.
	Opcode  int       // Effective opcode, extensions included.
	Ext     int       // Number of EXT prefixes.
	NoCache bool      // Bypass the cache for operand accesses.
	Info    arch.Info // Table entry for Opcode.
	Modes   byte      // Raw addressing byte.
	R       arch.ModeR
	X       arch.ModeX
	Args    [arch.MaxArgBytes]byte // Raw argument bytes: admx bytes, then admr bytes.
	Argn    int                    // Number of argument bytes fetched so far.
	AddrR   uint16                 // Effective address of the admr operand.
	AddrX   uint16                 // Effective address of the admx operand.
	Src     uint16                 // admx operand value.
	Dest    uint16                 // admr operand value.
	Result  uint16                 // Value pending write back, push or pop.
	IRQ     int                    // Interrupt being entered.
	Return  uint16                 // Return address pushed by the interrupt sequence.
}

// reset clears the record for a new instruction starting at ip.
func (in *Intermediate) reset(ip uint16) {
	*in = Intermediate{IP: ip, Opcode: -1}
}

// argBytes returns the number of argument bytes the instruction carries.
func (in *Intermediate) argBytes() int {
	return in.X.Bytes() + in.R.Bytes()
}

// width returns the operand width in bytes.
func (in *Intermediate) width() int {
	if in.Info.Width == arch.U8 {
		return 1
	}
	return 2
}

// Instruction returns the binary form of the decoded instruction.
func (in *Intermediate) Instruction() arch.Instruction {
	return arch.Instruction{
		Opcode:  in.Opcode,
		NoCache: in.NoCache,
		R:       in.R,
		X:       in.X,
		Args:    append([]byte(nil), in.Args[:in.argBytes()]...),
	}
}

func (in *Intermediate) String() string {
	i := in.Instruction()
	return i.String()
}
