package lir

import (
	"fmt"
	"os"
)

// DebugValidate gates whether Editor.EditScope.Commit revalidates the
// edited block (and, transitively, the function) after every commit,
// per spec.md §4.1 "commit() ... in debug builds it revalidates".
// Read once at package load from LIRC_DEBUG_VALIDATE, the same "read
// an env var once at startup" idiom the teacher uses for GOGC in
// run.go's RunProgram.
var DebugValidate = os.Getenv("LIRC_DEBUG_VALIDATE") == "1"

// Editor is the sole mutator of the LIR (spec.md §4.1). It enforces a
// single-block-in-flight discipline: Edit must be paired with the
// returned EditScope's Commit before another block may be edited.
type Editor struct {
	fn   *Function
	open *BasicBlock // non-nil while a block is being edited
}

// NewEditor creates an Editor bound to one function. Editors are not
// shared across functions (spec.md §5: "single-threaded, non-reentrant
// per function").
func NewEditor(fn *Function) *Editor {
	return &Editor{fn: fn}
}

func (e *Editor) Function() *Function { return e.fn }

// EditScope is the guard object returned by Edit. Its Commit method is
// the only way to leave editing scope, reproducing the source's
// edit()...commit() pairing as a type-level guard (design note in
// spec.md §9 "Editor lifetime").
type EditScope struct {
	editor *Editor
	block  *BasicBlock
}

// Edit enters block for modification. Calling Edit again before the
// previous EditScope's Commit is a programmer error and panics —
// "editing two blocks concurrently" is exactly the invariant-panic
// spec.md §7 calls out.
func (e *Editor) Edit(block *BasicBlock) *EditScope {
	if e.open != nil {
		panic(fmt.Sprintf("lir: cannot edit block %s: block %s is already being edited (not committed)", block.Name(), e.open.Name()))
	}
	if block.fn != e.fn {
		panic("lir: block does not belong to this editor's function")
	}
	e.open = block
	return &EditScope{editor: e, block: block}
}

// Function returns the owning function, for passes that need to
// allocate fresh virtual registers or look up the literal map while a
// block is being edited.
func (s *EditScope) Function() *Function { return s.editor.fn }

func (s *EditScope) requireOpen() {
	if s.editor.open != s.block {
		panic("lir: edit scope already committed")
	}
}

// Append splices instr onto the end of the block's ordinary
// instruction list (or the phi list for OpPhi), assigning it a fresh
// id.
func (s *EditScope) Append(instr *Instruction) {
	s.requireOpen()
	s.insertInstr(instr, len(s.block.instr), len(s.block.phis))
}

// InsertBefore splices instr immediately before ref.
func (s *EditScope) InsertBefore(instr *Instruction, ref *Instruction) {
	s.requireOpen()
	if ref.Op == OpPhi {
		idx := s.phiIndex(ref)
		s.insertInstr(instr, -1, idx)
		return
	}
	idx := s.instrIndex(ref)
	s.insertInstr(instr, idx, -1)
}

// InsertAfter splices instr immediately after ref.
func (s *EditScope) InsertAfter(instr *Instruction, ref *Instruction) {
	s.requireOpen()
	if ref.Op == OpPhi {
		idx := s.phiIndex(ref)
		s.insertInstr(instr, -1, idx+1)
		return
	}
	idx := s.instrIndex(ref)
	s.insertInstr(instr, idx+1, -1)
}

// insertInstr inserts instr at phiIdx (if instr.Op == OpPhi) or at
// ordinaryIdx otherwise. Exactly one of the two indices is used; -1
// means "append at the relevant list's end".
func (s *EditScope) insertInstr(instr *Instruction, ordinaryIdx, phiIdx int) {
	instr.block = s.block
	instr.id = s.editor.fn.nextInstructionID()
	if instr.Op == OpPhi {
		if phiIdx < 0 {
			phiIdx = len(s.block.phis)
		}
		s.block.phis = append(s.block.phis, nil)
		copy(s.block.phis[phiIdx+1:], s.block.phis[phiIdx:])
		s.block.phis[phiIdx] = instr
		return
	}
	if ordinaryIdx < 0 {
		ordinaryIdx = len(s.block.instr)
	}
	s.block.instr = append(s.block.instr, nil)
	copy(s.block.instr[ordinaryIdx+1:], s.block.instr[ordinaryIdx:])
	s.block.instr[ordinaryIdx] = instr
}

func (s *EditScope) instrIndex(instr *Instruction) int {
	for i, other := range s.block.instr {
		if other == instr {
			return i
		}
	}
	panic("lir: instruction does not belong to this block")
}

func (s *EditScope) phiIndex(instr *Instruction) int {
	for i, other := range s.block.phis {
		if other == instr {
			return i
		}
	}
	panic("lir: phi does not belong to this block")
}

// Remove detaches instr from the block and clears its id, per spec.md
// §3.3 "a monotonic id ... cleared on removal".
func (s *EditScope) Remove(instr *Instruction) {
	s.requireOpen()
	if instr.Op == OpPhi {
		idx := s.phiIndex(instr)
		s.block.phis = append(s.block.phis[:idx], s.block.phis[idx+1:]...)
	} else {
		idx := s.instrIndex(instr)
		s.block.instr = append(s.block.instr[:idx], s.block.instr[idx+1:]...)
	}
	instr.block = nil
	instr.id = 0
}

// SetInput and SetOutput rewrite a slot in place.
func (s *EditScope) SetInput(instr *Instruction, index int, v Value) {
	s.requireOpen()
	instr.SetInput(index, v)
}

func (s *EditScope) SetOutput(instr *Instruction, index int, v Value) {
	s.requireOpen()
	instr.SetOutput(index, v)
}

// SetPhiPredecessor renames the predecessor half of phi's input at
// index, leaving the value half untouched. Used by
// transform.PreparePhiInversion to retarget a phi input onto the
// trampoline block it just spliced in for a critical edge (spec.md
// §4.1).
func (s *EditScope) SetPhiPredecessor(phi *Instruction, index int, newPred *BasicBlock) {
	s.requireOpen()
	if phi.Op != OpPhi {
		panic("lir: SetPhiPredecessor called on a non-phi instruction")
	}
	phi.PhiInputs[index].Pred = newPred
}

// removeTerminator drops the block's current terminator, if any, so a
// new one can be installed. Used by SetJump/SetBranch/SetReturn, each
// of which "ensures" a terminator shape regardless of what was there
// before (spec.md §4.1).
func (s *EditScope) removeTerminator() {
	if term := s.block.Terminator(); term != nil {
		s.Remove(term)
	}
}

// SetJump ensures the block ends in an unconditional jump to target.
func (s *EditScope) SetJump(target *BasicBlock) {
	s.requireOpen()
	s.removeTerminator()
	lit := s.editor.fn.literals().Block(target)
	instr := NewFixed(OpJump, nil, []Value{lit})
	s.Append(instr)
}

// SetBranch ensures the block ends in a conditional branch.
func (s *EditScope) SetBranch(condition Value, trueTarget, falseTarget *BasicBlock) {
	s.requireOpen()
	s.removeTerminator()
	lits := s.editor.fn.literals()
	instr := NewFixed(OpBranch, nil, []Value{condition, lits.Block(trueTarget), lits.Block(falseTarget)})
	s.Append(instr)
}

// SetReturn ensures the block ends in a ret to the function's exit
// block. Spec.md §4.1 describes the target as "implicit"; we still
// carry it as a literal operand (see Factory.NewFunction) purely so
// BasicBlock.Successors can resolve it without special-casing Ret.
func (s *EditScope) SetReturn() {
	s.requireOpen()
	s.removeTerminator()
	lit := s.editor.fn.literals().Block(s.editor.fn.Exit())
	instr := NewFixed(OpRet, nil, []Value{lit})
	s.Append(instr)
}

// Commit exits editing scope. In debug builds (DebugValidate) it
// revalidates the edited block and, transitively, the owning function
// (spec.md §4.1).
func (s *EditScope) Commit() []ValidationError {
	s.requireOpen()
	s.editor.open = nil
	if !DebugValidate {
		return nil
	}
	v := NewValidator()
	return v.ValidateFunction(s.editor.fn)
}

// NewBasicBlock allocates a block and splices it immediately before
// ref — used to keep the exit block last even as new blocks are
// inserted ahead of it (spec.md §4.1).
func (e *Editor) NewBasicBlock(ref *BasicBlock) *BasicBlock {
	if e.open != nil {
		panic("lir: cannot allocate a block while another is being edited")
	}
	return e.fn.insertBlockBefore(ref)
}

// RemoveBasicBlock deletes b from the function's block list. Callers
// (the Clean pass, spec.md §4.4 "Remove empty blocks") must first
// redirect every predecessor away from b; this method does not check
// reachability itself, since mid-rewrite b may briefly still be named
// by a literal the caller is about to overwrite. b must not be the
// entry or exit block.
func (e *Editor) RemoveBasicBlock(b *BasicBlock) {
	if e.open != nil {
		panic("lir: cannot remove a block while another is being edited")
	}
	if b == e.fn.Entry() || b == e.fn.Exit() {
		panic("lir: cannot remove the entry or exit block")
	}
	idx := e.fn.blockIndex(b)
	e.fn.blocks = append(e.fn.blocks[:idx], e.fn.blocks[idx+1:]...)
}
