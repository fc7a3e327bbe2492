package devices

// Type identifies the kind of device behind a port.
type Type byte

// Known device types.
const (
	CPU Type = iota
	RAM
	Clock
	Terminal
	Storage
	Display
	Keyboard
	MemoryBank
)

func (t Type) String() string {
	switch t {
	case CPU:
		return "cpu"
	case RAM:
		return "ram"
	case Clock:
		return "clock"
	case Terminal:
		return "terminal"
	case Storage:
		return "storage"
	case Display:
		return "display"
	case Keyboard:
		return "keyboard"
	case MemoryBank:
		return "memory-bank"
	}
	return "unknown"
}

// State is the bus transaction phase of a port.
type State byte

// Known port states.
const (
	Idle State = iota
	Occupy
	Fetch
	Store
	Reply
	Interrupt
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Occupy:
		return "occupy"
	case Fetch:
		return "fetch"
	case Store:
		return "store"
	case Reply:
		return "reply"
	case Interrupt:
		return "interrupt"
	}
	return "unknown"
}

// Range is an inclusive address window.
type Range struct {
	Low, High uint16
}

// Contains returns true if addr lies within the window.
func (r Range) Contains(addr uint16) bool {
	return addr >= r.Low && addr <= r.High
}

// Port is the request/response record every device uses to talk over
// the bus. The owning device and the bus both mutate it; the bus writes
// request fields into a target's port, the target writes its response
// into its own port.
type Port struct {
	ID        ID      // Source identifier.
	TargetID  ID      // Requester (for a target) or responder (for a requester).
	Type      Type    // Device kind.
	State     State   // Current transaction phase.
	Processed bool    // The addressed device produced or consumed the data.
	Address   uint16  // Request address, or interrupt id for Interrupt.
	Data      uint64  // Request or response payload.
	Readable  bool    // Does the device answer Fetch requests?
	Writable  bool    // Does the device accept Store requests?
	Listen    []Range // Address windows claimed by the device.
}

// NewPort creates an idle port listening on [low, high].
func NewPort(id ID, t Type, readable, writable bool, low, high uint16) Port {
	return Port{
		ID:       id,
		Type:     t,
		Readable: readable,
		Writable: writable,
		Listen:   []Range{{low, high}},
	}
}

// Reset returns the port to the idle state.
func (p *Port) Reset() {
	p.State = Idle
	p.Processed = false
}

// Busy returns true if a request is in flight or a reply awaits collection.
func (p *Port) Busy() bool {
	return p.State != Idle || p.Processed
}

// Claims returns true if any of the listener windows covers addr.
func (p *Port) Claims(addr uint16) bool {
	for _, r := range p.Listen {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}
