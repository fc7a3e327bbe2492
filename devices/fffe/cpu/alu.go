package cpu

import (
	"math"
	"math/bits"

	"github.com/x448/float16"
)

// setFlags updates the comparison flags for operands a and b and the
// given result. a is the destination (or sole) operand, b the source.
func (c *CPU) setFlags(a, b, result uint16) {
	s := &c.status
	s.Z = result == 0
	s.FZ = s.Z
	s.L = int16(a) < int16(b)
	s.UL = a < b
	s.FL = f16(a) < f16(b)
	s.BL = bf16(a) < bf16(b)
}

func f16(v uint16) float32 {
	return float16.Frombits(v).Float32()
}

func toF16(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

func bf16(v uint16) float32 {
	return math.Float32frombits(uint32(v) << 16)
}

// toBF16 rounds f to the nearest bfloat16, ties to even.
func toBF16(f float32) uint16 {
	u := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return uint16(u>>16) | 0x40 // Keep NaN quiet.
	}
	u += 0x7fff + (u>>16)&1
	return uint16(u >> 16)
}

func finite(f float32) bool {
	return !math.IsInf(float64(f), 0) && !math.IsNaN(float64(f))
}

// arith computes a two-operand integer operation on a and b.
// Returns the result and the overflow/carry flag.
func arith(op int, a, b uint16, carry bool) (uint16, bool) {
	var ci uint32
	if carry {
		ci = 1
	}

	switch op {
	case opAdd:
		r := uint32(a) + uint32(b) + ci
		return uint16(r), r > 0xffff
	case opSub:
		r := int32(a) - int32(b) - int32(ci)
		return uint16(r), r < 0
	case opMul:
		r := uint32(a) * uint32(b)
		return uint16(r), r > 0xffff
	case opDiv:
		if b == 0 {
			return 0, true
		}
		return a / b, false
	case opMod:
		if b == 0 {
			return 0, true
		}
		return a % b, false
	case opSDiv:
		if b == 0 {
			return 0, true
		}
		if int16(a) == math.MinInt16 && int16(b) == -1 {
			return a, true
		}
		return uint16(int16(a) / int16(b)), false
	case opAnd:
		return a & b, false
	case opOr:
		return a | b, false
	case opXor:
		return a ^ b, false
	case opShl:
		n := b & 0x1f
		r := uint32(a) << n
		return uint16(r), n > 0 && r&0x10000 != 0
	case opShr:
		n := b & 0x1f
		if n == 0 {
			return a, false
		}
		return uint16(uint32(a) >> n), (uint32(a)>>(n-1))&1 != 0
	case opSar:
		n := b & 0x1f
		if n == 0 {
			return a, false
		}
		v := int32(int16(a))
		return uint16(v >> n), (v>>(n-1))&1 != 0
	case opRol:
		n := int(b & 0xf)
		r := bits.RotateLeft16(a, n)
		return r, n > 0 && r&1 != 0
	case opRor:
		n := int(b & 0xf)
		r := bits.RotateLeft16(a, -n)
		return r, n > 0 && r&0x8000 != 0
	}
	return 0, false
}

// float computes a two-operand f16 or bf16 operation.
// The overflow flag is set when the result is not finite.
func float(op int, a, b uint16, brain bool) (uint16, bool) {
	from, to := f16, toF16
	if brain {
		from, to = bf16, toBF16
	}

	x, y := from(a), from(b)
	var r float32
	switch op {
	case opAdd:
		r = x + y
	case opSub:
		r = x - y
	case opMul:
		r = x * y
	case opDiv:
		r = x / y
	}

	v := to(r)
	return v, !finite(from(v))
}

// ftoi converts an f16 value to a signed integer, saturating at the
// int16 range. NaN converts to zero. The flag is set if the value was
// clamped or NaN.
func ftoi(v uint16) (uint16, bool) {
	f := f16(v)
	switch {
	case math.IsNaN(float64(f)):
		return 0, true
	case f > math.MaxInt16:
		return uint16(math.MaxInt16), true
	case f < math.MinInt16:
		return uint16(0x8000), true
	}
	return uint16(int16(f)), false
}

// Integer and float operation selectors.
const (
	opAdd = iota
	opSub
	opMul
	opDiv
	opMod
	opSDiv
	opAnd
	opOr
	opXor
	opShl
	opShr
	opSar
	opRol
	opRor
)
