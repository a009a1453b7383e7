// Package x64 implements the x64-specific collaborators this backend
// needs: the Target descriptor (spec.md §6.3/§6.4), the target-lowering
// pass (spec.md §4.3) and the two-pass code buffer/emitter (spec.md
// §4.6). The teacher has no analogous ISA-specific package (its VM is
// its own target), so this package is grounded on the pack's other
// codegen-shaped reference files (falcon's lower_x86.go,
// wazero's backend/isa/amd64) for the lowering shapes, adapted to this
// backend's own Value/Instruction types rather than copied.
package x64

import (
	"fmt"

	"lirc/lir"
)

// regNumber assigns a stable identity to each architectural register,
// independent of which width it is addressed at. General-purpose
// registers occupy 0-15 (in encoding order RAX,RCX,RDX,RBX,RSP,RBP,RSI,
// RDI,R8-R15); XMM registers occupy 16-31.
type regNumber uint32

const (
	regRAX regNumber = iota
	regRCX
	regRDX
	regRBX
	regRSP
	regRBP
	regRSI
	regRDI
	regR8
	regR9
	regR10
	regR11
	regR12
	regR13
	regR14
	regR15
)

const xmmBase regNumber = 16

func xmm(n uint32) regNumber { return xmmBase + regNumber(n) }

// gpNames maps every width-qualified spelling of a general-purpose
// register to its regNumber, used by RegisterOf.
var gpNames = map[string]regNumber{
	"RAX": regRAX, "EAX": regRAX, "AX": regRAX, "AL": regRAX,
	"RCX": regRCX, "ECX": regRCX, "CX": regRCX, "CL": regRCX,
	"RDX": regRDX, "EDX": regRDX, "DX": regRDX, "DL": regRDX,
	"RBX": regRBX, "EBX": regRBX, "BX": regRBX, "BL": regRBX,
	"RSP": regRSP, "ESP": regRSP,
	"RBP": regRBP, "EBP": regRBP,
	"RSI": regRSI, "ESI": regRSI,
	"RDI": regRDI, "EDI": regRDI,
	"R8": regR8, "R8D": regR8,
	"R9": regR9, "R9D": regR9,
	"R10": regR10, "R10D": regR10,
	"R11": regR11, "R11D": regR11,
	"R12": regR12, "R12D": regR12,
	"R13": regR13, "R13D": regR13,
	"R14": regR14, "R14D": regR14,
	"R15": regR15, "R15D": regR15,
}

var gpSizeByName = map[string]lir.Size{
	"RAX": lir.Size64, "EAX": lir.Size32, "AX": lir.Size16, "AL": lir.Size8,
	"RCX": lir.Size64, "ECX": lir.Size32, "CX": lir.Size16, "CL": lir.Size8,
	"RDX": lir.Size64, "EDX": lir.Size32, "DX": lir.Size16, "DL": lir.Size8,
	"RBX": lir.Size64, "EBX": lir.Size32, "BX": lir.Size16, "BL": lir.Size8,
	"RSP": lir.Size64, "ESP": lir.Size32,
	"RBP": lir.Size64, "EBP": lir.Size32,
	"RSI": lir.Size64, "ESI": lir.Size32,
	"RDI": lir.Size64, "EDI": lir.Size32,
	"R8": lir.Size64, "R8D": lir.Size32,
	"R9": lir.Size64, "R9D": lir.Size32,
	"R10": lir.Size64, "R10D": lir.Size32,
	"R11": lir.Size64, "R11D": lir.Size32,
	"R12": lir.Size64, "R12D": lir.Size32,
	"R13": lir.Size64, "R13D": lir.Size32,
	"R14": lir.Size64, "R14D": lir.Size32,
	"R15": lir.Size64, "R15D": lir.Size32,
}

func gp(t lir.Type, s lir.Size, n regNumber) lir.Value {
	return lir.NewPhysical(t, s, uint32(n))
}

// Descriptor implements lir.Target for the x64 Windows calling
// convention described in spec.md §6.4.
type Descriptor struct{}

func New() *Descriptor { return &Descriptor{} }

func (d *Descriptor) AllocatableGeneralRegisters() []lir.Value {
	return []lir.Value{
		gp(lir.Int, lir.Size64, regRAX), gp(lir.Int, lir.Size64, regRCX), gp(lir.Int, lir.Size64, regRDX),
		gp(lir.Int, lir.Size64, regRBX), gp(lir.Int, lir.Size64, regRSI), gp(lir.Int, lir.Size64, regRDI),
		gp(lir.Int, lir.Size64, regR8), gp(lir.Int, lir.Size64, regR9), gp(lir.Int, lir.Size64, regR10),
		gp(lir.Int, lir.Size64, regR11), gp(lir.Int, lir.Size64, regR12), gp(lir.Int, lir.Size64, regR13),
		gp(lir.Int, lir.Size64, regR14), gp(lir.Int, lir.Size64, regR15),
	}
}

func (d *Descriptor) AllocatableFloatRegisters() []lir.Value {
	regs := make([]lir.Value, 0, 16)
	for i := uint32(0); i < 16; i++ {
		regs = append(regs, gp(lir.Float, lir.Size64, xmm(i)))
	}
	return regs
}

// RegisterOf looks up a named ISA register. XMM registers accept an
// "S"/"D" size suffix (XMM0S = single/float32, XMM0D = double/float64)
// per spec.md §4.2's "XMM0S/XMM0D selected by output type".
func (d *Descriptor) RegisterOf(name string) lir.Value {
	if n, ok := gpNames[name]; ok {
		return gp(lir.Int, gpSizeByName[name], n)
	}
	if len(name) > 4 && name[:3] == "XMM" {
		suffix := name[len(name)-1]
		numStr := name[3 : len(name)-1]
		var idx uint32
		if _, err := fmt.Sscanf(numStr, "%d", &idx); err != nil {
			panic(fmt.Sprintf("x64: unknown register %q", name))
		}
		switch suffix {
		case 'S':
			return gp(lir.Float, lir.Size32, xmm(idx))
		case 'D':
			return gp(lir.Float, lir.Size64, xmm(idx))
		}
	}
	if len(name) >= 4 && name[:3] == "XMM" {
		var idx uint32
		if _, err := fmt.Sscanf(name[3:], "%d", &idx); err == nil {
			return gp(lir.Float, lir.Size64, xmm(idx))
		}
	}
	panic(fmt.Sprintf("x64: unknown register %q", name))
}

var intParamOrder = []regNumber{regRCX, regRDX, regR8, regR9}

func (d *Descriptor) ParameterAt(t lir.Type, size lir.Size, index int) lir.Value {
	return d.argOrParamAt(t, size, index, true)
}

func (d *Descriptor) ArgumentAt(t lir.Type, size lir.Size, index int) lir.Value {
	return d.argOrParamAt(t, size, index, false)
}

// argOrParamAt implements spec.md §6.4: integer 0-3 in RCX/RDX/R8/R9
// sized to the parameter, float 0-3 in XMM0-3, remainder at
// [rsp+16+8*i]. Parameters and arguments share the same convention in
// this ABI (it is a caller/callee-symmetric slotting), so one helper
// serves both ParameterAt and ArgumentAt.
func (d *Descriptor) argOrParamAt(t lir.Type, size lir.Size, index int, isParam bool) lir.Value {
	_ = isParam
	if index < 4 {
		if t == lir.Float {
			return gp(lir.Float, lir.Size64, xmm(uint32(index)))
		}
		return gp(lir.Int, size, intParamOrder[index])
	}
	offset := uint32(16 + 8*index)
	if isParam {
		return lir.NewFrameSlot(t, size, offset)
	}
	return lir.NewStackSlot(t, size, offset)
}

func (d *Descriptor) ReturnOf(t lir.Type, size lir.Size) lir.Value {
	if t == lir.Float {
		return gp(lir.Float, size, xmm(0))
	}
	if size < lir.Size32 {
		size = lir.Size32
	}
	return gp(lir.Int, size, regRAX)
}

func (d *Descriptor) IsCalleeSaved(reg lir.Value) bool {
	n := regNumber(reg.UData())
	switch {
	case n == regRBX || n == regRDI || n == regRSI:
		return true
	case n >= regR12 && n <= regR15:
		return true
	case n >= xmm(6) && n <= xmm(15):
		return true
	default:
		return false
	}
}

func (d *Descriptor) IsCallerSaved(reg lir.Value) bool {
	n := regNumber(reg.UData())
	switch n {
	case regR10, regR11, xmm(4), xmm(5):
		return true
	default:
		return false
	}
}

func (d *Descriptor) IsParameterRegister(reg lir.Value) bool {
	n := regNumber(reg.UData())
	if reg.Type() == lir.Float {
		return n >= xmm(0) && n <= xmm(3)
	}
	for _, p := range intParamOrder {
		if p == n {
			return true
		}
	}
	return false
}

func (d *Descriptor) HasCopyImmediateToMemory(t lir.Type) bool {
	// x64 mov to memory accepts a 32-bit sign-extended immediate for
	// integers; float constants must be materialized into a register
	// first (there is no "mov [mem], imm-float" form).
	return t == lir.Int
}

func (d *Descriptor) HasSwapInstruction(t lir.Type) bool {
	// xchg exists for general-purpose registers only.
	return t == lir.Int
}

func (d *Descriptor) PointerSize() lir.Size     { return lir.Size64 }
func (d *Descriptor) PointerSizeInByte() uint32 { return 8 }

func (d *Descriptor) ShiftCountRegister(shiftedSize lir.Size) lir.Value {
	if shiftedSize == lir.Size64 {
		return gp(lir.Int, lir.Size64, regRCX)
	}
	return gp(lir.Int, lir.Size8, regRCX) // CL
}

func (d *Descriptor) DivideRegisters(size lir.Size) (low, high lir.Value) {
	if size == lir.Size64 {
		return gp(lir.Int, lir.Size64, regRAX), gp(lir.Int, lir.Size64, regRDX)
	}
	return gp(lir.Int, lir.Size32, regRAX), gp(lir.Int, lir.Size32, regRDX)
}

// ShadowSpaceBytes is the 32-byte shadow space x64 Windows reserves in
// the outgoing-argument area for every call, regardless of how many
// register-passed arguments it actually uses (spec.md §6.4).
const ShadowSpaceBytes = 32
