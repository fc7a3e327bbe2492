package devices

// Memory gives direct, bus-less access to a device's storage.
// It is used to load program images and by debug watches; the CPU
// never uses it.
type Memory interface {
	// Peek returns the byte at the given address.
	Peek(addr uint16) byte

	// Poke sets the byte at the given address.
	Poke(addr uint16, value byte)
}

// PeekU16 returns the little endian 16-bit value at the given address.
func PeekU16(m Memory, addr uint16) uint16 {
	return uint16(m.Peek(addr)) | uint16(m.Peek(addr+1))<<8
}

// PokeU16 sets the little endian 16-bit value at the given address.
func PokeU16(m Memory, addr, value uint16) {
	m.Poke(addr, byte(value))
	m.Poke(addr+1, byte(value>>8))
}
