package vm

import (
	"math"
)

// Value represents a wisp value using NaN-boxing.
//
// All values are represented as 64-bit IEEE 754 doubles. Non-float values
// are encoded in the NaN (Not-a-Number) space using the quiet NaN prefix
// and tag bits to distinguish types.
//
// Encoding scheme:
//   - Float: Native IEEE 754 double (if not a NaN, it's a float)
//   - SmallInt: Quiet NaN + tagInt + 48-bit signed payload
//   - Cons: Quiet NaN + tagCons + 48-bit cell arena index
//   - Symbol: Quiet NaN + tagSymbol + symbol ID
//   - String: Quiet NaN + tagString + string table index
//   - Special: Quiet NaN + tagSpecial + special value ID (nil/true/false)
//
// Cons cells and strings are addressed by index into tables owned by a
// VM rather than by raw pointer, so a Value is meaningful only relative
// to the VM that produced it. Values themselves are immutable handles.
type Value uint64

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	// 0x7FF8_0000_0000_0000
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	// 0x0007_0000_0000_0000
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits for index/int/id
	// 0x0000_FFFF_FFFF_FFFF
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// Tag values (shifted into position)
	tagCons    uint64 = 0x0001000000000000 // Cell arena index
	tagInt     uint64 = 0x0002000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0003000000000000 // nil, true, false
	tagSymbol  uint64 = 0x0004000000000000 // Interned symbol ID
	tagString  uint64 = 0x0005000000000000 // String table index

	// Sign bit for 48-bit integer sign extension
	intSignBit uint64 = 0x0000800000000000

	// Mask for sign extension
	intSignExtend uint64 = 0xFFFF000000000000
)

// Special value payloads
const (
	specialNil   uint64 = 0
	specialTrue  uint64 = 1
	specialFalse uint64 = 2
)

// Pre-defined special values
const (
	Nil   Value = Value(nanBits | tagSpecial | specialNil)
	True  Value = Value(nanBits | tagSpecial | specialTrue)
	False Value = Value(nanBits | tagSpecial | specialFalse)
)

// SmallInt range (48-bit signed)
const (
	MaxSmallInt int64 = (1 << 47) - 1
	MinSmallInt int64 = -(1 << 47)
)

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsFloat returns true if v represents a float64 value.
// A value is a float if it's not one of our tagged NaN values.
// This includes regular numbers, infinities, and "real" NaN values.
func (v Value) IsFloat() bool {
	bits := uint64(v)

	// Check if it's a NaN or Infinity (exponent all 1s)
	if (bits & 0x7FF0000000000000) != 0x7FF0000000000000 {
		return true
	}

	// Exponent is all 1s. Infinity has mantissa == 0.
	mantissa := bits & 0x000FFFFFFFFFFFFF
	if mantissa == 0 {
		return true
	}

	// It's a NaN. Signaling NaNs are not ours.
	if (bits & nanBits) != nanBits {
		return true
	}

	// A quiet NaN with no tag bits is a "real" NaN, treat as float.
	tag := bits & tagMask
	if tag == 0 {
		return true
	}

	return false
}

// IsSmallInt returns true if v represents a small integer.
func (v Value) IsSmallInt() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagInt)
}

// IsCons returns true if v represents a cons cell.
func (v Value) IsCons() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagCons)
}

// IsSymbol returns true if v represents an interned symbol.
func (v Value) IsSymbol() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagSymbol)
}

// IsString returns true if v represents a string.
func (v Value) IsString() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagString)
}

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsBool returns true if v is true or false.
func (v Value) IsBool() bool {
	return v == True || v == False
}

// IsSpecial returns true if v is nil, true, or false.
func (v Value) IsSpecial() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagSpecial)
}

// IsNumber returns true if v is a small integer or a float.
func (v Value) IsNumber() bool {
	return v.IsSmallInt() || v.IsFloat()
}

// IsAtom returns true if v is self-evaluating: anything but a cons cell.
func (v Value) IsAtom() bool {
	return !v.IsCons()
}

// Truthy reports the boolean interpretation of v: everything except
// false and nil is true.
func (v Value) Truthy() bool {
	return v != False && v != Nil
}

// ---------------------------------------------------------------------------
// Float operations
// ---------------------------------------------------------------------------

// Float64 returns v as a float64.
// Panics if v is not a float.
func (v Value) Float64() float64 {
	if !v.IsFloat() {
		panic("Value.Float64: not a float")
	}
	return math.Float64frombits(uint64(v))
}

// FromFloat64 creates a Value from a float64.
func FromFloat64(f float64) Value {
	return Value(math.Float64bits(f))
}

// ---------------------------------------------------------------------------
// SmallInt operations
// ---------------------------------------------------------------------------

// SmallInt returns v as an int64.
// Panics if v is not a small integer.
func (v Value) SmallInt() int64 {
	if !v.IsSmallInt() {
		panic("Value.SmallInt: not a small integer")
	}
	payload := uint64(v) & payloadMask

	// Sign extend from 48 bits to 64 bits
	if (payload & intSignBit) != 0 {
		payload |= intSignExtend
	}
	return int64(payload)
}

// FromSmallInt creates a Value from an int64.
// Panics if n is outside the SmallInt range.
func FromSmallInt(n int64) Value {
	if n > MaxSmallInt || n < MinSmallInt {
		panic("FromSmallInt: value out of range")
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask))
}

// TryFromSmallInt creates a Value from an int64, returning false if the
// value does not fit in 48 bits.
func TryFromSmallInt(n int64) (Value, bool) {
	if n > MaxSmallInt || n < MinSmallInt {
		return Nil, false
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask)), true
}

// ---------------------------------------------------------------------------
// Symbol operations
// ---------------------------------------------------------------------------

// SymbolID returns the interned symbol ID of v.
// Panics if v is not a symbol.
func (v Value) SymbolID() SymbolID {
	if !v.IsSymbol() {
		panic("Value.SymbolID: not a symbol")
	}
	return SymbolID(uint64(v) & payloadMask)
}

// FromSymbolID creates a symbol Value from an interned symbol ID.
func FromSymbolID(id SymbolID) Value {
	return Value(nanBits | tagSymbol | (uint64(id) & payloadMask))
}

// IsErrorSymbol returns true if v is one of the reserved error symbols
// used to tag failed results.
func (v Value) IsErrorSymbol() bool {
	if !v.IsSymbol() {
		return false
	}
	id := v.SymbolID()
	return id >= symErrorFirst && id <= symErrorLast
}

// ---------------------------------------------------------------------------
// Cons and string payloads (arena indices, used by the VM)
// ---------------------------------------------------------------------------

func (v Value) consIndex() int {
	return int(uint64(v) & payloadMask)
}

func fromConsIndex(i int) Value {
	return Value(nanBits | tagCons | (uint64(i) & payloadMask))
}

func (v Value) stringIndex() int {
	return int(uint64(v) & payloadMask)
}

func fromStringIndex(i int) Value {
	return Value(nanBits | tagString | (uint64(i) & payloadMask))
}
