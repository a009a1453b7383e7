package transform

import "lirc/lir"

// PreparePhiInversion inserts a trampoline block on every edge P -> B
// where B carries phi instructions and P has more than one successor
// — a critical edge, per the GLOSSARY definition spec.md §10 restates
// as "a CFG edge P -> S where P has >=2 successors and S has >=2
// predecessors; problematic for phi destruction." The trampoline's
// body is nothing but a jump to B; each phi in B that named P as a
// predecessor is rewritten to name the trampoline instead, so after
// this pass every phi predecessor has exactly one successor (spec.md
// §4.1, §8.1 boundary behavior).
func PreparePhiInversion(fn *lir.Function, editor *lir.Editor) {
	for _, b := range fn.Blocks() {
		if len(b.Phis()) == 0 {
			continue
		}
		for _, p := range b.Predecessors() {
			if len(p.Successors()) <= 1 {
				continue
			}
			splitCriticalEdge(fn, editor, p, b)
		}
	}
}

// splitCriticalEdge inserts a trampoline on the P -> b edge, retargets
// P's terminator at the trampoline, and renames every phi input in b
// that named P.
func splitCriticalEdge(fn *lir.Function, editor *lir.Editor, p, b *lir.BasicBlock) {
	trampoline := editor.NewBasicBlock(b)
	tscope := editor.Edit(trampoline)
	tscope.SetJump(b)
	tscope.Commit()

	pterm := p.Terminator()
	pscope := editor.Edit(p)
	retarget(pscope, fn, pterm, b, trampoline)
	pscope.Commit()

	bscope := editor.Edit(b)
	for _, phi := range b.Phis() {
		for i, in := range phi.PhiInputs {
			if in.Pred == p {
				bscope.SetPhiPredecessor(phi, i, trampoline)
			}
		}
	}
	bscope.Commit()
}
