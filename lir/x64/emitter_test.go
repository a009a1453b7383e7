package x64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lirc/lir"
	"lirc/lir/x64"
)

// recordingSink implements x64.CodeBuilder, keeping just enough of
// what was delivered for assertions.
type recordingSink struct {
	code          []byte
	prepared      int
	codeOffsets   map[int]int
	finished      bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{codeOffsets: make(map[int]int)}
}

func (s *recordingSink) PrepareCode(n int)                 { s.prepared = n }
func (s *recordingSink) EmitCode(b []byte)                 { s.code = append(s.code, b...) }
func (s *recordingSink) SetCallSite(offset int, name string) {}
func (s *recordingSink) SetCodeOffset(offset, target int)  { s.codeOffsets[offset] = target }
func (s *recordingSink) SetFloat32(offset int, v float32)  {}
func (s *recordingSink) SetFloat64(offset int, v float64)  {}
func (s *recordingSink) SetInt32(offset int, v int32)      {}
func (s *recordingSink) SetInt64(offset int, v int64)      {}
func (s *recordingSink) SetString(offset int, u []uint16)  {}
func (s *recordingSink) SetSourceCodeLocation(int, int)    {}
func (s *recordingSink) FinishCode()                       { s.finished = true }

// TestEmitEmptyFunctionEncodesJustRet is spec.md §8's minimal-function
// encoding law: a function with no added instructions is nothing but
// the default return, encoded as a single ret opcode byte.
func TestEmitEmptyFunctionEncodesJustRet(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	fn := factory.NewFunction("empty", nil)

	sink := newRecordingSink()
	require.NoError(t, x64.NewEmitter(target).Run(fn, sink))

	require.Equal(t, []byte{0xC3}, sink.code)
	require.True(t, sink.finished)
	require.Equal(t, len(sink.code), sink.prepared)
}

// TestEmitComparisonEncodesPredicateByte checks that a comparison's
// predicate rides as the byte immediately after its opcode tag.
func TestEmitComparisonEncodesPredicateByte(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	fn := factory.NewFunction("cmp", nil)

	editor := lir.NewEditor(fn)
	scope := editor.Edit(fn.Entry())
	a := fn.NewVirtualRegister(lir.Int, lir.Size32)
	b := fn.NewVirtualRegister(lir.Int, lir.Size32)
	out := fn.NewVirtualRegister(lir.Int, lir.Size8)
	cmp := lir.NewCompare(lir.OpIntCmp, lir.PredicateGT, out, []lir.Value{a, b})
	scope.InsertBefore(cmp, fn.Entry().Terminator())
	scope.Commit()

	sink := newRecordingSink()
	require.NoError(t, x64.NewEmitter(target).Run(fn, sink))

	require.Equal(t, byte(0x39), sink.code[0], "OpIntCmp's opcode tag")
	require.Equal(t, byte(lir.PredicateGT), sink.code[1], "predicate byte must follow the opcode tag")
}

// TestEmitMulEncodesTwoByteOpcode checks that a plain two-address
// multiply (the shape lowerMul leaves in place whenever the right
// operand isn't an imm32) gets the real 0F AF imul r, r/m tag instead
// of silently falling back to the generic encoder's NOP placeholder.
func TestEmitMulEncodesTwoByteOpcode(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	fn := factory.NewFunction("mul", nil)

	editor := lir.NewEditor(fn)
	scope := editor.Edit(fn.Entry())
	a := fn.NewVirtualRegister(lir.Int, lir.Size32)
	b := fn.NewVirtualRegister(lir.Int, lir.Size32)
	out := fn.NewVirtualRegister(lir.Int, lir.Size32)
	mul := lir.NewFixed(lir.OpMul, []lir.Value{out}, []lir.Value{a, b})
	scope.InsertBefore(mul, fn.Entry().Terminator())
	scope.Commit()

	sink := newRecordingSink()
	require.NoError(t, x64.NewEmitter(target).Run(fn, sink))

	require.Equal(t, byte(0x0F), sink.code[0], "imul's leading opcode byte")
	require.Equal(t, byte(0xAF), sink.code[1], "imul r, r/m's trailing opcode byte")
}

// TestEmitUnregisteredOpcodeErrorsInsteadOfEmittingNOP checks that an
// opcode with no genericOpcodeByte entry is reported as an error rather
// than silently encoded as 0x90 — a missing encoding is a bug, not a
// legitimate no-op.
func TestEmitUnregisteredOpcodeErrorsInsteadOfEmittingNOP(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	fn := factory.NewFunction("unregistered", nil)

	editor := lir.NewEditor(fn)
	scope := editor.Edit(fn.Entry())
	a := fn.NewVirtualRegister(lir.Int, lir.Size32)
	out := fn.NewVirtualRegister(lir.Int, lir.Size32)
	// OpUMod never reaches the emitter through the normal lowering
	// pipeline (lowerDivMod rewrites it to OpX64UDiv first), so it has
	// no genericOpcodeByte entry — exercising it here stands in for any
	// opcode the encoder doesn't yet know how to emit.
	unmapped := lir.NewFixed(lir.OpUMod, []lir.Value{out}, []lir.Value{a, a})
	scope.InsertBefore(unmapped, fn.Entry().Terminator())
	scope.Commit()

	sink := newRecordingSink()
	err := x64.NewEmitter(target).Run(fn, sink)
	require.Error(t, err)
}

// TestEmitJumpGrowsAcrossLongBoundary is spec.md §8's jump-growth
// boundary law: a forward jump whose target starts out within rel8
// range but is pushed past it by filler code between the jump and its
// target must widen to the rel32 form, and every record at or past the
// widened site must shift by the resulting size delta.
//
// entry branches to c (true) and b (false); b falls through a hundred
// filler instructions before jumping on to c itself. Branching rather
// than jumping straight to c keeps b reachable (an unreachable block
// never reaches the emitter's reverse-post-order layout at all), while
// the entry->c edge is still the one long-distance forward reference
// that must grow once b's filler pushes c out of rel8 range.
func TestEmitJumpGrowsAcrossLongBoundary(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	fn := factory.NewFunction("grow", nil)

	editor := lir.NewEditor(fn)
	exit := fn.Exit()

	c := editor.NewBasicBlock(exit)
	b := editor.NewBasicBlock(c)

	cond := fn.NewVirtualRegister(lir.Int, lir.Size8)
	aScope := editor.Edit(fn.Entry())
	aScope.SetBranch(cond, c, b)
	aScope.Commit()

	// Enough filler instructions in b that entry's branch-true edge to
	// c can no longer fit an 8-bit displacement (each OpNot encodes as
	// 2 bytes: opcode + one register operand byte).
	bScope := editor.Edit(b)
	for i := 0; i < 100; i++ {
		r := fn.NewVirtualRegister(lir.Int, lir.Size32)
		bScope.Append(lir.NewFixed(lir.OpNot, []lir.Value{r}, []lir.Value{r}))
	}
	bScope.SetJump(c)
	bScope.Commit()

	cScope := editor.Edit(c)
	cScope.SetReturn()
	cScope.Commit()

	sink := newRecordingSink()
	require.NoError(t, x64.NewEmitter(target).Run(fn, sink))

	// entry's true-edge jump must have grown to the long jcc form
	// (0x0F 0x84 + rel32).
	require.Equal(t, byte(0x0F), sink.code[0], "entry's true-edge jump must have widened to the long jcc form")
	require.Equal(t, byte(0x84), sink.code[1])

	patchOffset := 2 // 0x0F 0x84 occupy bytes 0-1, rel32 starts at 2
	targetOffset, ok := sink.codeOffsets[patchOffset]
	require.True(t, ok, "no relocation recorded at the grown jump's patch offset")
	require.Equal(t, targetOffset, len(sink.code)-1, "c is the last block before the unconditional ret, so it must start at codeLen-1")
}
