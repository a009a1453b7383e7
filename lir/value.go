// Package lir implements the low-level target-aware intermediate
// representation this backend lowers to: the packed Value operand
// encoding, the literal map, the instruction/block/function graph,
// the Editor that is the graph's sole mutator, and the Validator.
//
// The packing discipline below mirrors the teacher's Instruction
// encoding in compile.go (opcode and argument count folded into one
// uint16, a register field, a 32-bit argument — all fixed width, no
// heap allocation for the common case). Value plays the same role for
// LIR operands that Instruction.code plays for bytecode: a small,
// copyable, tagged word.
package lir

import "fmt"

// Type is the operand's scalar kind: everything in this backend is
// either an integer or a float of some bit width; compound/pointer
// types have already been lowered to one of these by the translator
// (spec.md §4.2 "Type mapping").
type Type uint8

const (
	Int Type = iota
	Float
)

func (t Type) String() string {
	if t == Float {
		return "float"
	}
	return "int"
}

// Size is the operand width in bits.
type Size uint8

const (
	Size8 Size = 8
	Size16 Size = 16
	Size32 Size = 32
	Size64 Size = 64
)

func (s Size) Bytes() uint32 { return uint32(s) / 8 }

// Kind identifies what a Value's Data field means.
type Kind uint8

const (
	// KindImmediate: Data is a small integer constant inlined into the
	// operand itself (8/16 bit, or 32-bit signed-fitting).
	KindImmediate Kind = iota
	// KindPhysical: Data is an ISA register number.
	KindPhysical
	// KindVirtual: Data is a virtual-register id, assigned by the
	// owning Function and never reused within it.
	KindVirtual
	// KindCondition: the 8-bit integer result of a compare, consumed
	// by a branch. Always (Int, Size8).
	KindCondition
	// KindFrameSlot: Data is a byte offset from the frame pointer.
	KindFrameSlot
	// KindStackSlot: Data is a byte offset from the stack pointer
	// (used for outgoing call arguments).
	KindStackSlot
	// KindArgument: Data is an index into the callee's incoming
	// stack-passed arguments.
	KindArgument
	// KindParameter: Data is an index into the function's declared
	// parameter list (pre-register-assignment bookkeeping value; the
	// translator resolves these to KindPhysical/KindFrameSlot per the
	// calling convention before the function leaves its hands).
	KindParameter
	// KindSpillSlot: Data is a byte offset assigned by the stack
	// allocator for a spilled virtual register.
	KindSpillSlot
	// KindLiteral: Data is an index into the owning Factory's
	// LiteralMap.
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindImmediate:
		return "imm"
	case KindPhysical:
		return "phys"
	case KindVirtual:
		return "vreg"
	case KindCondition:
		return "cond"
	case KindFrameSlot:
		return "frame"
	case KindStackSlot:
		return "stack"
	case KindArgument:
		return "arg"
	case KindParameter:
		return "param"
	case KindSpillSlot:
		return "spill"
	case KindLiteral:
		return "lit"
	default:
		return "?kind?"
	}
}

// Value is the packed 32-bit operand tag described in spec.md §3.1:
//
//	bit 31       type   (1 bit)
//	bits 30-28   size   (3 bits: encodes 8/16/32/64)
//	bits 27-24   kind   (4 bits)
//	bits 23-0    data   (24 bits, signed where the kind calls for it)
//
// 24 bits of payload comfortably covers every Data use in this backend
// (register numbers, byte offsets within a frame far under 16MB,
// literal-table indices); the teacher accepts a similar trade-off by
// giving Instruction.arg a fixed 32 bits and register a fixed 16,
// rather than a variable-length encoding.
type Value uint32

const (
	typeShift = 31
	sizeShift = 28
	kindShift = 24
	dataMask  = 0x00FFFFFF
)

var sizeCode = map[Size]uint32{Size8: 0, Size16: 1, Size32: 2, Size64: 3}
var codeSize = map[uint32]Size{0: Size8, 1: Size16, 2: Size32, 3: Size64}

func pack(t Type, s Size, k Kind, data uint32) Value {
	return Value(uint32(t)<<typeShift | sizeCode[s]<<sizeShift | uint32(k)<<kindShift | (data & dataMask))
}

func (v Value) Type() Type { return Type((v >> typeShift) & 0x1) }
func (v Value) Size() Size { return codeSize[(uint32(v)>>sizeShift)&0x7] }
func (v Value) Kind() Kind { return Kind((uint32(v) >> kindShift) & 0xF) }

// Data returns the raw payload, sign-extended from 24 bits for kinds
// whose data is semantically signed (only KindImmediate).
func (v Value) Data() int32 {
	raw := int32(uint32(v) & dataMask)
	if v.Kind() == KindImmediate && raw&0x00800000 != 0 {
		raw |= ^int32(dataMask)
	}
	return raw
}

// UData returns the payload as an unsigned register/slot/index number.
func (v Value) UData() uint32 { return uint32(v) & dataMask }

// NewImmediate constructs an immediate operand. Per spec.md §3.1 only
// 8/16-bit payloads, or 32-bit values that fit signed-32, may be
// inlined; callers lowering a wider constant must go through the
// literal map (NewLiteralRef) instead. This constructor panics on
// violation: it is only ever called by code internal to this backend
// (the translator, the lowering pass) after it has already decided the
// constant fits, so a violation here is a programmer error, not a
// translation-time diagnostic — mirroring the teacher's
// "invariant panics are programmer errors" error-kind split (spec.md
// §7).
func NewImmediate(t Type, s Size, data int64) Value {
	switch s {
	case Size8, Size16:
		// always representable inline
	case Size32:
		if data < -(1<<31) || data > (1<<31)-1 {
			panic(fmt.Sprintf("lir: immediate %d does not fit signed-32", data))
		}
	default:
		panic(fmt.Sprintf("lir: immediate of size %d must be referenced via the literal map", s))
	}
	if data < -(1<<23) || data > (1<<23)-1 {
		panic(fmt.Sprintf("lir: immediate %d does not fit this Value encoding's 24-bit payload", data))
	}
	return pack(t, s, KindImmediate, uint32(data)&dataMask)
}

// NewCondition constructs the result operand of a compare. Always
// 8-bit integer per spec.md §3.1.
func NewCondition(regID uint32) Value {
	return pack(Int, Size8, KindCondition, regID)
}

// NewPhysical constructs a physical-register operand. (t, s) must
// agree with the ISA register named by data, per spec.md §3.1 — the
// caller (almost always a Target implementation) is responsible for
// that agreement; this constructor does not have access to the
// Target to check it.
func NewPhysical(t Type, s Size, regNumber uint32) Value {
	return pack(t, s, KindPhysical, regNumber)
}

// NewVirtual constructs a fresh virtual-register operand. regID comes
// from Function.NewVirtualRegister, the only source of these ids,
// whose counter is monotonic within one function.
func NewVirtual(t Type, s Size, regID uint32) Value {
	return pack(t, s, KindVirtual, regID)
}

// NewFrameSlot, NewStackSlot and NewSpillSlot construct memory
// operands that carry the element (type, size) and a byte offset in
// Data, per spec.md §3.1.
func NewFrameSlot(t Type, s Size, byteOffset uint32) Value {
	return pack(t, s, KindFrameSlot, byteOffset)
}

func NewStackSlot(t Type, s Size, byteOffset uint32) Value {
	return pack(t, s, KindStackSlot, byteOffset)
}

func NewSpillSlot(t Type, s Size, byteOffset uint32) Value {
	return pack(t, s, KindSpillSlot, byteOffset)
}

// NewArgument and NewParameter construct the pre-register-assignment
// bookkeeping operands used while the translator is still deciding
// where each parameter/argument lives.
func NewArgument(t Type, s Size, index uint32) Value {
	return pack(t, s, KindArgument, index)
}

func NewParameter(t Type, s Size, index uint32) Value {
	return pack(t, s, KindParameter, index)
}

// NewLiteralRef constructs an operand referencing a LiteralMap entry.
// The literal's own (type, size) govern how the emitter interprets the
// reference; this Value additionally carries (t, s) so arithmetic
// lowering can inspect operand types without a LiteralMap lookup.
func NewLiteralRef(t Type, s Size, index uint32) Value {
	return pack(t, s, KindLiteral, index)
}

func (v Value) IsRegister() bool {
	return v.Kind() == KindPhysical || v.Kind() == KindVirtual
}

func (v Value) IsMemory() bool {
	switch v.Kind() {
	case KindFrameSlot, KindStackSlot, KindSpillSlot:
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind() {
	case KindImmediate:
		return fmt.Sprintf("%d", v.Data())
	case KindCondition:
		return fmt.Sprintf("cond%%%d", v.UData())
	case KindVirtual:
		return fmt.Sprintf("%%r%d", v.UData())
	case KindPhysical:
		return fmt.Sprintf("%%p%d", v.UData())
	case KindFrameSlot:
		return fmt.Sprintf("[frame+%d]", v.UData())
	case KindStackSlot:
		return fmt.Sprintf("[stack+%d]", v.UData())
	case KindSpillSlot:
		return fmt.Sprintf("[spill+%d]", v.UData())
	case KindArgument:
		return fmt.Sprintf("arg%d", v.UData())
	case KindParameter:
		return fmt.Sprintf("param%d", v.UData())
	case KindLiteral:
		return fmt.Sprintf("lit#%d", v.UData())
	default:
		return "?value?"
	}
}
