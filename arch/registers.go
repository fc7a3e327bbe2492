package arch

import "strings"

// Register identifies an architectural register.
type Register int

// Known registers. SR is not addressable by instructions; it is listed
// so that external observers can refer to it.
const (
	R0 Register = iota
	R1
	R2
	R3
	SP
	PC
	SR

	RegisterCount
)

// IsRegister returns true if the given name represents a known register.
func IsRegister(name string) bool {
	return RegisterIndex(name) > -1
}

// RegisterIndex returns the index for the given register.
// Returns -1 if the name is not recognized.
func RegisterIndex(name string) Register {
	switch strings.ToLower(name) {
	case "r0":
		return R0
	case "r1":
		return R1
	case "r2":
		return R2
	case "r3":
		return R3
	case "sp":
		return SP
	case "pc":
		return PC
	case "sr":
		return SR
	}
	return -1
}

// RegisterName returns the name associated with the given register index.
// Returns "" if the index is not recognized.
func RegisterName(n Register) string {
	switch n {
	case R0:
		return "r0"
	case R1:
		return "r1"
	case R2:
		return "r2"
	case R3:
		return "r3"
	case SP:
		return "sp"
	case PC:
		return "pc"
	case SR:
		return "sr"
	}
	return ""
}

func (r Register) String() string {
	return RegisterName(r)
}
