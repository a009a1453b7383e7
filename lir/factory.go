package lir

import "lirc/internal/diag"

// Factory is the arena that owns every Function, BasicBlock,
// Instruction and Literal produced during one compilation, plus the
// shared LiteralMap and the accumulated diagnostics list (spec.md §5:
// "the factory, literal map, editor, and validator form a single-owner
// resource graph"). It plays the role the teacher's Program
// (instructions []Instruction, debugSymMap) plays for a whole
// compiled unit, generalized to own more than one function.
//
// A Factory is not safe for concurrent use; spec.md §5 specifies
// single-threaded, non-reentrant-per-function scheduling. A future
// parallel embedding would partition Factory per worker and merge
// LiteralMaps under a lock at the end (spec.md §5's own note) — not
// implemented here.
type Factory struct {
	target   Target
	literals *LiteralMap
	diags    diag.List

	functions   []*Function
	nextFuncID  int
}

// NewFactory creates a Factory scoped to the given Target. Every
// Function it creates shares one LiteralMap and one diagnostics list.
func NewFactory(target Target) *Factory {
	return &Factory{target: target, literals: newLiteralMap()}
}

func (f *Factory) Target() Target          { return f.target }
func (f *Factory) Literals() *LiteralMap    { return f.literals }
func (f *Factory) Diagnostics() *diag.List  { return &f.diags }
func (f *Factory) Functions() []*Function   { return f.functions }

// NewFunction allocates a function and seeds it with an entry block
// (containing an Entry instruction) and an exit block (ending in an
// Exit instruction), connected by a single Ret, per spec.md §4.1 "On
// first use of a new function, the Editor seeds entry and exit blocks
// ... no further terminator work needed for empty functions." Doing
// this eagerly in the Factory (rather than lazily on first Editor use)
// keeps Function.Entry()/Exit() always valid, which every other pass
// relies on.
func (f *Factory) NewFunction(name string, params []Value) *Function {
	f.nextFuncID++
	fn := &Function{factory: f, id: f.nextFuncID, Name: name, Params: params}

	entry := fn.insertBlockBefore(nil)
	exit := fn.insertBlockBefore(nil)

	entryInstr := NewFixed(OpEntry, nil, nil)
	entryInstr.id = fn.nextInstructionID()
	entryInstr.block = entry
	entry.instr = append(entry.instr, entryInstr)

	exitInstr := NewFixed(OpExit, nil, nil)
	exitInstr.id = fn.nextInstructionID()
	exitInstr.block = exit
	exit.instr = append(exit.instr, exitInstr)

	retInstr := NewFixed(OpRet, nil, []Value{f.literals.Block(exit)})
	retInstr.id = fn.nextInstructionID()
	retInstr.block = entry
	entry.instr = append(entry.instr, retInstr)

	f.functions = append(f.functions, fn)
	return fn
}
