package x64

import "lirc/lir"

// Lowering rewrites generic LIR into the two-operand, fixed-register
// shapes x64 actually accepts (spec.md §4.3). It runs once per
// function, in forward instruction order; cmd/lirc runs it after the
// translator, the Clean pass and phi-inversion prep, and before stack
// allocation.
type Lowering struct {
	target *Descriptor
}

func NewLowering(target *Descriptor) *Lowering {
	return &Lowering{target: target}
}

// Run lowers every arithmetic, divide/modulo, multiply and shift
// instruction in fn, mutating it in place through editor.
func (lw *Lowering) Run(fn *lir.Function, editor *lir.Editor) {
	for _, b := range fn.Blocks() {
		lw.lowerBlock(b, editor)
	}
}

func (lw *Lowering) lowerBlock(b *lir.BasicBlock, editor *lir.Editor) {
	// Snapshot instructions before mutating: InsertBefore/Remove shift
	// indices under us otherwise.
	instrs := append([]*lir.Instruction(nil), b.Instructions()...)
	scope := editor.Edit(b)
	for _, instr := range instrs {
		switch {
		// IsDivOrMod is type-agnostic; the RAX/RDX pinning below is an
		// integer-divide hardware quirk (original_source's
		// lowering_x64_pass.cc keeps VisitFloatDiv/VisitFloatMod on the
		// plain two-address path and reserves RewriteIntDiv/
		// RewriteUIntDiv for integer ops), so a float divide/modulo
		// must not reach lowerDivMod.
		case instr.Op.IsDivOrMod() && instr.Output(0).Type() != lir.Float:
			lw.lowerDivMod(scope, instr)
		case instr.Op == lir.OpMul:
			lw.lowerMul(scope, instr)
		case instr.Op.IsShift():
			lw.lowerShift(scope, instr)
		case instr.Op.IsArithmetic():
			lw.lowerTwoAddress(scope, instr)
		}
	}
	scope.Commit()
}

// materializeLiteral inserts a literal-load of v into a fresh virtual
// register immediately before ref, returning the register. Used when
// a literal/immediate operand appears where x64 requires a register
// (the two-address rewrite's left-hand side, per spec.md §4.3).
func materializeLiteral(scope *lir.EditScope, ref *lir.Instruction, v lir.Value) lir.Value {
	reg := scope.Function().NewVirtualRegister(v.Type(), v.Size())
	load := lir.NewFixed(lir.OpLiteral, []lir.Value{reg}, []lir.Value{v})
	scope.InsertBefore(load, ref)
	return reg
}

// lowerTwoAddress rewrites `o = a <op> b` into:
//
//	t  := a        (pre-copy, materializing a literal left operand first)
//	o' = t <op> b
//	o  := o'       (post-copy)
//
// per spec.md §4.3.
func (lw *Lowering) lowerTwoAddress(scope *lir.EditScope, instr *lir.Instruction) {
	fn := scope.Function()
	a := instr.Input(0)
	if a.Kind() == lir.KindImmediate || a.Kind() == lir.KindLiteral {
		a = materializeLiteral(scope, instr, a)
	}

	out := instr.Output(0)
	t := fn.NewVirtualRegister(a.Type(), a.Size())
	preCopy := lir.NewFixed(lir.OpMov, []lir.Value{t}, []lir.Value{a})
	scope.InsertBefore(preCopy, instr)

	newOut := fn.NewVirtualRegister(out.Type(), out.Size())
	scope.SetOutput(instr, 0, newOut)
	scope.SetInput(instr, 0, t)

	postCopy := lir.NewFixed(lir.OpMov, []lir.Value{out}, []lir.Value{newOut})
	scope.InsertAfter(postCopy, instr)
}

// lowerMul implements spec.md §4.3's multiply rule: a right-hand
// 32-bit-fitting immediate keeps the three-address `imul r, r/m, imm`
// shape (rewritten to the OpX64Mul opcode so the encoder knows which
// form to emit); anything else gets the ordinary two-address
// treatment.
func (lw *Lowering) lowerMul(scope *lir.EditScope, instr *lir.Instruction) {
	b := instr.Input(1)
	if b.Kind() == lir.KindImmediate && b.Size() != lir.Size64 {
		instr.Op = lir.OpX64Mul
		return
	}
	lw.lowerTwoAddress(scope, instr)
}

// lowerShift rewrites the shift to two-address, then pins a
// non-immediate count to the fixed CL/RCX register if needed (spec.md
// §4.3).
func (lw *Lowering) lowerShift(scope *lir.EditScope, instr *lir.Instruction) {
	count := instr.Input(1)
	lw.lowerTwoAddress(scope, instr)

	if count.Kind() == lir.KindImmediate {
		return
	}
	shiftedSize := instr.Output(0).Size()
	fixed := lw.target.ShiftCountRegister(shiftedSize)
	copyInstr := lir.NewFixed(lir.OpMov, []lir.Value{fixed}, []lir.Value{instr.Input(1)})
	scope.InsertBefore(copyInstr, instr)
	scope.SetInput(instr, 1, fixed)
}

// lowerDivMod implements spec.md §4.3's signed/unsigned divide-modulo
// shape:
//
//	copy a -> RAX/EAX
//	sign-extend (signed) or zero (unsigned) RAX/EAX -> RDX/EDX
//	3-input hardware divide (high, low, divisor) -> (quotient, remainder)
//	copy the quotient or remainder back into the original output
func (lw *Lowering) lowerDivMod(scope *lir.EditScope, instr *lir.Instruction) {
	a, b := instr.Input(0), instr.Input(1)
	size := a.Size()
	low, high := lw.target.DivideRegisters(size)

	copyA := lir.NewFixed(lir.OpMov, []lir.Value{low}, []lir.Value{a})
	scope.InsertBefore(copyA, instr)

	signed := instr.Op == lir.OpDiv || instr.Op == lir.OpMod
	op := lir.OpX64Div
	if signed {
		extend := lir.NewFixed(lir.OpX64Sar, []lir.Value{high}, []lir.Value{low})
		scope.InsertBefore(extend, instr)
	} else {
		zero := lir.NewImmediate(a.Type(), size, 0)
		zeroHigh := lir.NewFixed(lir.OpMov, []lir.Value{high}, []lir.Value{zero})
		scope.InsertBefore(zeroHigh, instr)
		op = lir.OpX64UDiv
	}

	divide := lir.NewFixed(op, []lir.Value{low, high}, []lir.Value{high, low, b})
	scope.InsertBefore(divide, instr)

	out := instr.Output(0)
	wantRemainder := instr.Op == lir.OpMod || instr.Op == lir.OpUMod
	result := low
	if wantRemainder {
		result = high
	}
	copyOut := lir.NewFixed(lir.OpMov, []lir.Value{out}, []lir.Value{result})
	scope.InsertAfter(copyOut, instr)
	scope.Remove(instr)
}
