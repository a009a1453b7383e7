package transform_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lirc/internal/testfixture"
	"lirc/lir"
	"lirc/lir/x64"
	"lirc/transform"
	"lirc/translate"
)

// TestPreparePhiInversionSplitsCriticalEdge exercises
// internal/testfixture.CriticalEdge, whose entry block branches
// straight into a phi-bearing join on one arm (entry has two
// successors, join has two predecessors before this pass runs). After
// PreparePhiInversion every predecessor of a phi-bearing block must
// have exactly one successor (spec.md §8's critical-edge boundary
// law).
func TestPreparePhiInversionSplitsCriticalEdge(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	tr := translate.NewTranslator(factory)

	fn, err := tr.Translate(testfixture.CriticalEdge())
	require.NoError(t, err)

	editor := lir.NewEditor(fn)
	transform.PreparePhiInversion(fn, editor)

	for _, b := range fn.Blocks() {
		if len(b.Phis()) == 0 {
			continue
		}
		for _, p := range b.Predecessors() {
			require.Lenf(t, p.Successors(), 1,
				"predecessor %s of phi-bearing block %s still has %d successors after splitting",
				p.Name(), b.Name(), len(p.Successors()))
		}
	}
}

// TestPreparePhiInversionPreservesPhiInputs checks that splitting a
// critical edge renames the phi's input to the new trampoline rather
// than dropping or duplicating it: every predecessor still has exactly
// one corresponding phi input, entry included (now indirectly, through
// its trampoline).
func TestPreparePhiInversionPreservesPhiInputs(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	tr := translate.NewTranslator(factory)

	fn, err := tr.Translate(testfixture.CriticalEdge())
	require.NoError(t, err)

	editor := lir.NewEditor(fn)
	transform.PreparePhiInversion(fn, editor)

	preds := fn.PredecessorMap()
	for _, b := range fn.Blocks() {
		for _, phi := range b.Phis() {
			require.Len(t, phi.PhiInputs, len(preds[b]),
				"phi in %s has %d inputs but block has %d predecessors", b.Name(), len(phi.PhiInputs), len(preds[b]))
			for _, p := range preds[b] {
				found := false
				for _, in := range phi.PhiInputs {
					if in.Pred == p {
						found = true
						break
					}
				}
				require.True(t, found, "phi in %s has no input for predecessor %s", b.Name(), p.Name())
			}
		}
	}
}

// TestPreparePhiInversionLeavesNonCriticalEdgesAlone checks that the
// pass is a no-op on fixtures with no critical edges: max's diamond
// already has a dedicated trampoline block on each arm, so the block
// count must not change.
func TestPreparePhiInversionLeavesNonCriticalEdgesAlone(t *testing.T) {
	target := x64.New()
	factory := lir.NewFactory(target)
	tr := translate.NewTranslator(factory)

	fn, err := tr.Translate(testfixture.Max())
	require.NoError(t, err)

	before := len(fn.Blocks())

	editor := lir.NewEditor(fn)
	transform.PreparePhiInversion(fn, editor)

	require.Equal(t, before, len(fn.Blocks()), "phi inversion split an edge that was not critical")
}
