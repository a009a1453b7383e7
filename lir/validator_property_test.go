package lir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lirc/hir"
	"lirc/internal/testfixture"
	"lirc/lir"
	"lirc/lir/x64"
	"lirc/transform"
	"lirc/translate"
)

// fixtureBuilders stands in for spec.md §8's "arbitrary generated
// functions": this backend has no schedule generator (the scheduler
// itself is out of scope, spec.md §1), so the property checks below
// run over every hand-built internal/testfixture schedule instead, the
// way a property test runs over every seed in a corpus when it has no
// generator of its own.
var fixtureBuilders = map[string]func() *hir.Schedule{
	"identity":    testfixture.Identity,
	"add_two":     testfixture.AddTwo,
	"max":         testfixture.Max,
	"sum_to":      testfixture.SumTo,
	"call_square": testfixture.CallSquare,
}

// buildLowered runs a fixture all the way to a fully lowered x64
// function (no register allocation runs), the point at which every property
// in spec.md §8 must hold.
func buildLowered(t *testing.T, build func() *hir.Schedule) *lir.Function {
	t.Helper()
	target := x64.New()
	factory := lir.NewFactory(target)
	tr := translate.NewTranslator(factory)

	fn, err := tr.Translate(build())
	require.NoError(t, err)

	editor := lir.NewEditor(fn)
	clean := transform.NewClean()
	for clean.Run(fn, editor) {
	}
	transform.PreparePhiInversion(fn, editor)

	lowering := x64.NewLowering(target)
	lowering.Run(fn, editor)

	return fn
}

func TestValidatorAcceptsEveryFixture(t *testing.T) {
	for name, build := range fixtureBuilders {
		t.Run(name, func(t *testing.T) {
			fn := buildLowered(t, build)
			errs := lir.NewValidator().ValidateFunction(fn)
			require.Empty(t, errs, "unexpected validation errors for %s: %v", name, errs)
		})
	}
}

// TestEveryBlockHasATerminator is spec.md §8 property 3.
func TestEveryBlockHasATerminator(t *testing.T) {
	for name, build := range fixtureBuilders {
		t.Run(name, func(t *testing.T) {
			fn := buildLowered(t, build)
			for _, b := range fn.Blocks() {
				require.NotNil(t, b.Terminator(), "block %s has no terminator", b.Name())
			}
		})
	}
}

// TestNonEntryBlocksHavePredecessors is spec.md §8 property 1; property
// 2 (every non-exit block has a successor) is checked alongside it
// since both come for free out of the same predecessor/successor walk.
func TestNonEntryBlocksHavePredecessors(t *testing.T) {
	for name, build := range fixtureBuilders {
		t.Run(name, func(t *testing.T) {
			fn := buildLowered(t, build)
			preds := fn.PredecessorMap()
			for _, b := range fn.Blocks() {
				if b != fn.Entry() {
					require.NotEmpty(t, preds[b], "block %s has no predecessors", b.Name())
				}
				if b != fn.Exit() {
					require.NotEmpty(t, b.Successors(), "block %s has no successors", b.Name())
				}
			}
		})
	}
}

// TestPhiInputsBijectWithPredecessors is spec.md §8 property 4.
func TestPhiInputsBijectWithPredecessors(t *testing.T) {
	for name, build := range fixtureBuilders {
		t.Run(name, func(t *testing.T) {
			fn := buildLowered(t, build)
			preds := fn.PredecessorMap()
			for _, b := range fn.Blocks() {
				for _, phi := range b.Phis() {
					seen := make(map[*lir.BasicBlock]bool, len(phi.PhiInputs))
					for _, in := range phi.PhiInputs {
						seen[in.Pred] = true
					}
					require.Len(t, seen, len(preds[b]), "phi in %s does not biject with its predecessors", b.Name())
					for _, p := range preds[b] {
						require.True(t, seen[p], "phi in %s is missing an input for predecessor %s", b.Name(), p.Name())
					}
				}
			}
		})
	}
}

// TestEveryOutputIsARegister is spec.md §8 property 5.
func TestEveryOutputIsARegister(t *testing.T) {
	for name, build := range fixtureBuilders {
		t.Run(name, func(t *testing.T) {
			fn := buildLowered(t, build)
			for _, b := range fn.Blocks() {
				for _, instr := range b.Instructions() {
					for i := 0; i < instr.NumOutputs(); i++ {
						require.True(t, instr.Output(i).IsRegister(), "%s output %d is not a register", instr.Op, i)
					}
				}
			}
		})
	}
}
