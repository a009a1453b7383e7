package x64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lirc/lir"
	"lirc/lir/x64"
)

func buildOneInstrFunction(t *testing.T, build func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction)) (*lir.Function, *x64.Descriptor) {
	t.Helper()
	target := x64.New()
	factory := lir.NewFactory(target)
	fn := factory.NewFunction("f", nil)

	editor := lir.NewEditor(fn)
	scope := editor.Edit(fn.Entry())
	build(fn, scope, fn.Entry().Terminator())
	scope.Commit()

	lowering := x64.NewLowering(target)
	lowering.Run(fn, editor)
	return fn, target
}

func findOp(t *testing.T, fn *lir.Function, op lir.Opcode) *lir.Instruction {
	t.Helper()
	for _, b := range fn.Blocks() {
		for _, instr := range b.Instructions() {
			if instr.Op == op {
				return instr
			}
		}
	}
	t.Fatalf("no %s instruction found after lowering", op)
	return nil
}

// TestLowerTwoAddressRewritesToOutOfPlace checks spec.md §4.3's
// two-address rewrite: `o = a + b` becomes a pre-copy into a fresh
// register, the add writing a second fresh register, and a post-copy
// back into the original output — o and a are never touched by the
// arithmetic op itself.
func TestLowerTwoAddressRewritesToOutOfPlace(t *testing.T) {
	var a, b, out lir.Value
	fn, _ := buildOneInstrFunction(t, func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction) {
		a = fn.NewVirtualRegister(lir.Int, lir.Size32)
		b = fn.NewVirtualRegister(lir.Int, lir.Size32)
		out = fn.NewVirtualRegister(lir.Int, lir.Size32)
		add := lir.NewFixed(lir.OpAdd, []lir.Value{out}, []lir.Value{a, b})
		scope.InsertBefore(add, term)
	})

	add := findOp(t, fn, lir.OpAdd)
	require.NotEqual(t, a, add.Input(0), "two-address rewrite must not reuse the original left operand register")
	require.Equal(t, b, add.Input(1))
	require.NotEqual(t, out, add.Output(0), "two-address rewrite must not reuse the original output register")

	movs := 0
	for _, instr := range fn.Entry().Instructions() {
		if instr.Op == lir.OpMov {
			movs++
		}
	}
	require.Equal(t, 2, movs, "expected exactly one pre-copy and one post-copy mov")
}

// TestLowerMulKeepsImmediateThreeAddress checks spec.md §4.3's multiply
// exception: a right-hand immediate that fits 32 bits keeps the
// three-address imul shape instead of going through the two-address
// rewrite.
func TestLowerMulKeepsImmediateThreeAddress(t *testing.T) {
	var a, out lir.Value
	fn, _ := buildOneInstrFunction(t, func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction) {
		a = fn.NewVirtualRegister(lir.Int, lir.Size32)
		out = fn.NewVirtualRegister(lir.Int, lir.Size32)
		imm := lir.NewImmediate(lir.Int, lir.Size32, 7)
		mul := lir.NewFixed(lir.OpMul, []lir.Value{out}, []lir.Value{a, imm})
		scope.InsertBefore(mul, term)
	})

	mul := findOp(t, fn, lir.OpX64Mul)
	require.Equal(t, a, mul.Input(0), "imm32 multiply must keep its original left operand untouched")
	require.Equal(t, out, mul.Output(0), "imm32 multiply must keep its original output untouched")
}

// TestLowerMulWithWideImmediateFallsBackToTwoAddress checks the other
// side of spec.md §4.3's multiply exception: a 64-bit constant (carried
// as a literal-map reference, since lir.NewImmediate has no Size64
// form) does not fit imul's imm32 form and must go through the
// ordinary two-address rewrite instead.
func TestLowerMulWithWideImmediateFallsBackToTwoAddress(t *testing.T) {
	fn, _ := buildOneInstrFunction(t, func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction) {
		a := fn.NewVirtualRegister(lir.Int, lir.Size64)
		out := fn.NewVirtualRegister(lir.Int, lir.Size64)
		imm := fn.Literals().Int(1<<40, lir.Size64)
		mul := lir.NewFixed(lir.OpMul, []lir.Value{out}, []lir.Value{a, imm})
		scope.InsertBefore(mul, term)
	})

	for _, b := range fn.Blocks() {
		for _, instr := range b.Instructions() {
			require.NotEqual(t, lir.OpX64Mul, instr.Op, "a 64-bit immediate must not take the imm32 imul shape")
		}
	}
	findOp(t, fn, lir.OpMul)
}

// TestLowerDivPinsFixedRegisters checks spec.md §4.3's divide-modulo
// shape: the dividend is copied into the target's low divide register
// and the op becomes the two-output hardware divide.
func TestLowerDivPinsFixedRegisters(t *testing.T) {
	fn, target := buildOneInstrFunction(t, func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction) {
		a := fn.NewVirtualRegister(lir.Int, lir.Size32)
		b := fn.NewVirtualRegister(lir.Int, lir.Size32)
		out := fn.NewVirtualRegister(lir.Int, lir.Size32)
		div := lir.NewFixed(lir.OpDiv, []lir.Value{out}, []lir.Value{a, b})
		scope.InsertBefore(div, term)
	})

	low, high := target.DivideRegisters(lir.Size32)
	div := findOp(t, fn, lir.OpX64Div)
	require.Equal(t, high, div.Input(0))
	require.Equal(t, low, div.Input(1))
	require.Equal(t, low, div.Output(0))
	require.Equal(t, high, div.Output(1))

	sawExtend := false
	for _, instr := range fn.Entry().Instructions() {
		if instr.Op == lir.OpX64Sar && instr.Output(0) == high {
			sawExtend = true
		}
	}
	require.True(t, sawExtend, "signed divide must sign-extend the dividend into the high register")
}

// TestLowerFloatDivTakesTwoAddressPath checks that a float divide does
// not get swept into the integer divide-modulo fixed-register pinning:
// only the hardware's integer divide instruction needs RAX/RDX, so a
// float OpDiv must fall through to the ordinary two-address rewrite.
func TestLowerFloatDivTakesTwoAddressPath(t *testing.T) {
	fn, target := buildOneInstrFunction(t, func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction) {
		a := fn.NewVirtualRegister(lir.Float, lir.Size64)
		b := fn.NewVirtualRegister(lir.Float, lir.Size64)
		out := fn.NewVirtualRegister(lir.Float, lir.Size64)
		div := lir.NewFixed(lir.OpDiv, []lir.Value{out}, []lir.Value{a, b})
		scope.InsertBefore(div, term)
	})

	for _, b := range fn.Blocks() {
		for _, instr := range b.Instructions() {
			require.NotEqual(t, lir.OpX64Div, instr.Op, "a float divide must not take the integer RAX/RDX divide shape")
			require.NotEqual(t, lir.OpX64UDiv, instr.Op, "a float divide must not take the integer RAX/RDX divide shape")
		}
	}
	div := findOp(t, fn, lir.OpDiv)

	low, high := target.DivideRegisters(lir.Size64)
	require.NotEqual(t, low, div.Output(0))
	require.NotEqual(t, high, div.Output(0))
}

// TestLowerShiftPinsNonImmediateCountToCL checks spec.md §4.3's shift
// rule: a variable shift count is copied into the fixed count register
// before the shift executes.
func TestLowerShiftPinsNonImmediateCountToCL(t *testing.T) {
	var countReg lir.Value
	fn, target := buildOneInstrFunction(t, func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction) {
		a := fn.NewVirtualRegister(lir.Int, lir.Size32)
		countReg = fn.NewVirtualRegister(lir.Int, lir.Size32)
		out := fn.NewVirtualRegister(lir.Int, lir.Size32)
		shl := lir.NewFixed(lir.OpShl, []lir.Value{out}, []lir.Value{a, countReg})
		scope.InsertBefore(shl, term)
	})

	fixed := target.ShiftCountRegister(lir.Size32)
	shl := findOp(t, fn, lir.OpShl)
	require.Equal(t, fixed, shl.Input(1))

	sawCopy := false
	for _, instr := range fn.Entry().Instructions() {
		if instr.Op == lir.OpMov && instr.Output(0) == fixed && instr.Input(0) == countReg {
			sawCopy = true
		}
	}
	require.True(t, sawCopy, "variable shift count must be copied into the fixed count register")
}

// TestLowerShiftByImmediateSkipsCountCopy checks that an immediate
// shift count never gets materialized into the fixed count register
// (spec.md §4.3's exemption for the immediate case).
func TestLowerShiftByImmediateSkipsCountCopy(t *testing.T) {
	fn, target := buildOneInstrFunction(t, func(fn *lir.Function, scope *lir.EditScope, term *lir.Instruction) {
		a := fn.NewVirtualRegister(lir.Int, lir.Size32)
		out := fn.NewVirtualRegister(lir.Int, lir.Size32)
		imm := lir.NewImmediate(lir.Int, lir.Size32, 3)
		shl := lir.NewFixed(lir.OpShl, []lir.Value{out}, []lir.Value{a, imm})
		scope.InsertBefore(shl, term)
	})

	fixed := target.ShiftCountRegister(lir.Size32)
	for _, instr := range fn.Entry().Instructions() {
		if instr.Op == lir.OpMov {
			require.NotEqual(t, fixed, instr.Output(0), "an immediate shift count must not be copied into the count register")
		}
	}
}
