package arch

// Status register bits, as seen by PUSHSR, POPSR, SETF and CLRF.
const (
	FlagZ   uint16 = 1 << iota // zero / equal
	FlagFZ                     // float zero; mirrors Z
	FlagL                      // signed less
	FlagUL                     // unsigned less
	FlagFL                     // f16 less
	FlagBL                     // bf16 less
	FlagAO                     // arithmetic overflow / carry
	FlagSRC                    // skip read cache
	FlagSWC                    // skip write cache
	FlagMI                     // mask interrupts
	FlagMNI                    // mask non-maskable interrupts; pipeline internal

	// FlagSoftware lists the bits software may read and write.
	FlagSoftware = FlagZ | FlagFZ | FlagL | FlagUL | FlagFL | FlagBL | FlagAO | FlagSRC | FlagSWC | FlagMI
)

// Default memory map.
const (
	MMIOBase    = 0xf000 // Start of memory mapped I/O.
	TerminalOut = 0xf002 // Terminal output register (write only).
	BankSelect  = 0xf010 // Memory bank select register.
	BankBase    = 0xc000 // Start of the banked memory window.
	BankWidth   = 0x2000 // Size of the banked memory window.
	BankCount   = 8      // Number of memory banks.
	IRQBase     = 0xef00 // Interrupt vector table; 2 bytes per vector.
	IRQCount    = 0x80   // Number of interrupt vectors.
	StackTop    = 0x3fff // Highest stack address; the stack grows down.
	CodeStart   = 0x0000 // Default entry point.
	MemorySize  = 0x10000
	TickerIRQ   = 1 // Interrupt id raised by the ticker.
)
