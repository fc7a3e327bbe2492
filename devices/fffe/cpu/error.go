package cpu

import "fmt"

// Error describes the fault that put the CPU in the EXCEPTION state.
type Error struct {
	IP     uint16 // Address of the faulting instruction.
	Opcode int    // Effective opcode; -1 if it was never decoded.
	Msg    string
}

// NewError creates a new, formatted error message for the given instruction.
func NewError(in *Intermediate, f string, argv ...interface{}) *Error {
	return &Error{
		IP:     in.IP,
		Opcode: in.Opcode,
		Msg:    fmt.Sprintf(f, argv...),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%04x: %s", e.IP, e.Msg)
}
