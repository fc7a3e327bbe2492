package cpu

// State is a pipeline stage.
type State byte

// Known pipeline stages.
const (
	FetchInstruction State = iota
	FetchAddressingModes
	FetchArgumentBytes
	ComputeAddress
	FetchSource
	FetchSourceHigh
	FetchDestination
	FetchDestinationHigh
	Execute
	WritebackLow
	WritebackHigh
	PushHigh
	PushLow
	PopLow
	PopHigh
	PopSRLow
	PopSRHigh
	InterruptPushPCHigh
	InterruptPushPCLow
	InterruptFetchVectorLow
	InterruptFetchVectorHigh
	Halt
	Exception
)

var stateNames = [...]string{
	FetchInstruction:         "FETCH_INSTRUCTION",
	FetchAddressingModes:     "FETCH_ADDRESSING_MODES",
	FetchArgumentBytes:       "FETCH_ARGUMENT_BYTES",
	ComputeAddress:           "COMPUTE_ADDRESS",
	FetchSource:              "FETCH_SOURCE",
	FetchSourceHigh:          "FETCH_SOURCE_HIGH",
	FetchDestination:         "FETCH_DESTINATION",
	FetchDestinationHigh:     "FETCH_DESTINATION_HIGH",
	Execute:                  "EXECUTE",
	WritebackLow:             "WRITEBACK_LOW",
	WritebackHigh:            "WRITEBACK_HIGH",
	PushHigh:                 "PUSH_HIGH",
	PushLow:                  "PUSH_LOW",
	PopLow:                   "POP_LOW",
	PopHigh:                  "POP_HIGH",
	PopSRLow:                 "POPSR_LOW",
	PopSRHigh:                "POPSR_HIGH",
	InterruptPushPCHigh:      "INTERRUPT_PUSH_PC_HIGH",
	InterruptPushPCLow:       "INTERRUPT_PUSH_PC_LOW",
	InterruptFetchVectorLow:  "INTERRUPT_FETCH_IRQ_VECTOR_LOW",
	InterruptFetchVectorHigh: "INTERRUPT_FETCH_IRQ_VECTOR_HIGH",
	Halt:                     "HALT",
	Exception:                "EXCEPTION",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Stopped returns true for the absorbing states.
func (s State) Stopped() bool {
	return s == Halt || s == Exception
}
