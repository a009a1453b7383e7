package translate

import (
	"fmt"
	"testing"

	"lirc/internal/testfixture"
	"lirc/lir"
	"lirc/lir/interp"
	"lirc/lir/x64"
	"lirc/transform"
)

// assert mirrors the teacher's vm_test.go helper of the same name and
// signature exactly.
func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestTranslateIdentity(t *testing.T) {
	factory := lir.NewFactory(x64.New())
	tr := NewTranslator(factory)
	fn, err := tr.Translate(testfixture.Identity())
	assert(t, err == nil, "translate identity: %v", err)

	result, err := interp.New().Run(fn, []int64{42})
	assert(t, err == nil, "interp identity: %v", err)
	assert(t, result == 42, "identity(42) = %d, want 42", result)
}

func TestTranslateAddTwo(t *testing.T) {
	factory := lir.NewFactory(x64.New())
	tr := NewTranslator(factory)
	fn, err := tr.Translate(testfixture.AddTwo())
	assert(t, err == nil, "translate add_two: %v", err)

	result, err := interp.New().Run(fn, []int64{3, 4})
	assert(t, err == nil, "interp add_two: %v", err)
	assert(t, result == 7, "add_two(3,4) = %d, want 7", result)
}

func TestTranslateMax(t *testing.T) {
	factory := lir.NewFactory(x64.New())
	tr := NewTranslator(factory)
	fn, err := tr.Translate(testfixture.Max())
	assert(t, err == nil, "translate max: %v", err)

	cases := []struct{ a, b, want int64 }{
		{5, 2, 5},
		{2, 5, 5},
		{7, 7, 7},
	}
	for _, c := range cases {
		result, err := interp.New().Run(fn, []int64{c.a, c.b})
		assert(t, err == nil, "interp max(%d,%d): %v", c.a, c.b, err)
		assert(t, result == c.want, "max(%d,%d) = %d, want %d", c.a, c.b, result, c.want)
	}
}

func TestTranslateSumTo(t *testing.T) {
	factory := lir.NewFactory(x64.New())
	tr := NewTranslator(factory)
	fn, err := tr.Translate(testfixture.SumTo())
	assert(t, err == nil, "translate sum_to: %v", err)

	cases := []struct{ n, want int64 }{
		{0, 0},
		{1, 1},
		{5, 15},
	}
	for _, c := range cases {
		result, err := interp.New().Run(fn, []int64{c.n})
		assert(t, err == nil, "interp sum_to(%d): %v", c.n, err)
		assert(t, result == c.want, "sum_to(%d) = %d, want %d", c.n, result, c.want)
	}
}

func TestTranslateCallSquare(t *testing.T) {
	factory := lir.NewFactory(x64.New())
	tr := NewTranslator(factory)
	fn, err := tr.Translate(testfixture.CallSquare())
	assert(t, err == nil, "translate call_square: %v", err)

	it := interp.New()
	it.Bind("square", func(args []int64) int64 { return args[0] * args[0] })

	result, err := it.Run(fn, []int64{6})
	assert(t, err == nil, "interp call_square(6): %v", err)
	assert(t, result == 36, "call_square(6) = %d, want 36", result)
}

// TestTranslateElementAtUsesLiteralMapForSize64Scale exercises
// emitElement's scale operand, always built at lir.Size64 regardless of
// the element's own size. intValue must route every Size64 value
// through the literal map rather than lir.NewImmediate, which panics
// for any size past Size32 (lir.Value's 24-bit immediate payload has
// no Size64 encoding).
func TestTranslateElementAtUsesLiteralMapForSize64Scale(t *testing.T) {
	factory := lir.NewFactory(x64.New())
	tr := NewTranslator(factory)

	var fn *lir.Function
	var err error
	requireNotPanics(t, func() {
		fn, err = tr.Translate(testfixture.ElementAt())
	})
	assert(t, err == nil, "translate element_at: %v", err)

	mul := findMul(t, fn)
	scale := mul.Input(1)
	assert(t, scale.Kind() == lir.KindLiteral, "element scale must be a literal map reference, got kind %v", scale.Kind())
	assert(t, scale.Size() == lir.Size64, "element scale must carry Size64, got %v", scale.Size())

	lit := fn.Literals().Get(scale.UData())
	assert(t, lit.Kind == lir.LiteralInt64, "element scale literal kind = %v, want LiteralInt64", lit.Kind)
	assert(t, lit.I64 == 4, "element scale literal = %d, want 4 (int32 element size)", lit.I64)
}

func findMul(t *testing.T, fn *lir.Function) *lir.Instruction {
	t.Helper()
	for _, b := range fn.Blocks() {
		for _, instr := range b.Instructions() {
			if instr.Op == lir.OpMul {
				return instr
			}
		}
	}
	t.Fatalf("no OpMul instruction found")
	return nil
}

// requireNotPanics mirrors testify's require.NotPanics but keeps this
// file's existing assert-based style; it fails the test with the
// recovered value instead of letting the panic propagate.
func requireNotPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	fn()
}

// TestCleanIdempotent checks spec.md §8's round-trip law: running the
// clean pass twice yields the same IR as running it once, i.e. a
// second call reports no further change.
func TestCleanIdempotent(t *testing.T) {
	factory := lir.NewFactory(x64.New())
	tr := NewTranslator(factory)
	fn, err := tr.Translate(testfixture.Max())
	assert(t, err == nil, "translate max: %v", err)

	editor := lir.NewEditor(fn)
	clean := transform.NewClean()
	for clean.Run(fn, editor) {
	}
	again := clean.Run(fn, editor)
	assert(t, !again, "clean pass was not idempotent: second run still reported a change")
}
