package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lirc/lir"
)

// TestCloneInstructionPreservesPredicate regression-tests
// combineSinglyUsedBlocks' use of cloneInstruction: a comparison
// carries its Predicate outside the normal Output/Input operand list
// (lir.Instruction's Predicate field), so a clone built only from
// those operands must copy it across explicitly or the cloned
// comparison silently performs the wrong test.
func TestCloneInstructionPreservesPredicate(t *testing.T) {
	a := lir.NewVirtual(lir.Int, lir.Size32, 1)
	b := lir.NewVirtual(lir.Int, lir.Size32, 2)
	out := lir.NewVirtual(lir.Int, lir.Size8, 3)

	original := lir.NewCompare(lir.OpIntCmp, lir.PredicateGT, out, []lir.Value{a, b})
	clone := cloneInstruction(original)

	require.Equal(t, original.Predicate, clone.Predicate)
	require.Equal(t, lir.PredicateGT, clone.Predicate)
}

func TestCloneInstructionPreservesOperandsForOrdinaryOp(t *testing.T) {
	a := lir.NewVirtual(lir.Int, lir.Size32, 1)
	b := lir.NewVirtual(lir.Int, lir.Size32, 2)
	out := lir.NewVirtual(lir.Int, lir.Size32, 3)

	original := lir.NewFixed(lir.OpAdd, []lir.Value{out}, []lir.Value{a, b})
	clone := cloneInstruction(original)

	require.Equal(t, original.Op, clone.Op)
	require.Equal(t, original.Output(0), clone.Output(0))
	require.Equal(t, original.Input(0), clone.Input(0))
	require.Equal(t, original.Input(1), clone.Input(1))
}
