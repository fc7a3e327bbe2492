package ram

// Memory is a flat byte store. Addresses wrap around its length.
type Memory []byte

// U8 returns the 8-bit value at the given address.
func (m Memory) U8(addr int) byte {
	return m[m.wrap(addr)]
}

// SetU8 sets the 8-bit value at the given address.
func (m Memory) SetU8(addr int, value byte) {
	m[m.wrap(addr)] = value
}

// U16 returns the little endian 16-bit value at the given address.
func (m Memory) U16(addr int) uint16 {
	return uint16(m.U8(addr)) | uint16(m.U8(addr+1))<<8
}

// SetU16 sets the little endian 16-bit value at the given address.
func (m Memory) SetU16(addr int, value uint16) {
	m.SetU8(addr, byte(value))
	m.SetU8(addr+1, byte(value>>8))
}

// U64 returns the little endian 64-bit value at the given address.
func (m Memory) U64(addr int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(m.U8(addr+i)) << (8 * i)
	}
	return v
}

// Write writes len(p) bytes from p into memory, starting at the given address.
func (m Memory) Write(address int, p []byte) {
	for i, v := range p {
		m.SetU8(address+i, v)
	}
}

// Read reads len(p) bytes from memory into p, starting at the given address.
func (m Memory) Read(address int, p []byte) {
	for i := range p {
		p[i] = m.U8(address + i)
	}
}

func (m Memory) wrap(addr int) int {
	addr %= len(m)
	if addr < 0 {
		addr += len(m)
	}
	return addr
}
