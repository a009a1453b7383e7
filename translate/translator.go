// Package translate implements the HIR-to-LIR translator (spec.md
// §4.2): a two-pass visitor over a hir.Schedule that emits a validated
// lir.Function. The teacher has no analogous "visit a scheduled graph
// and emit instructions" component (its compile.go parses text
// directly into bytecode), so this package's shape is grounded on
// spec.md §4.2's own two-pass description plus
// original_source/elang/translate/translator.cc for the block-mapping
// and phi-fixup details spec.md only summarizes.
package translate

import (
	"lirc/hir"
	"lirc/internal/diag"
	"lirc/lir"
)

// Translator turns schedules into functions against one Factory (and
// therefore one shared literal map and diagnostics list). It carries
// no per-function state itself — see funcTranslation — so one
// Translator may translate many functions in sequence (spec.md §5:
// "single-threaded, non-reentrant per function", not per translator).
type Translator struct {
	factory *lir.Factory
	target  lir.Target
}

func NewTranslator(factory *lir.Factory) *Translator {
	return &Translator{factory: factory, target: factory.Target()}
}

// Translate consumes one schedule and returns a validated function, or
// the first unsupported-lowering/validation error encountered — per
// spec.md §7, "translation of the containing function aborts but
// other functions are unaffected."
func (tr *Translator) Translate(schedule *hir.Schedule) (*lir.Function, error) {
	diags := tr.factory.Diagnostics()
	if err := schedule.Validate(); err != nil {
		return nil, diags.Wrap(schedule.Name, err)
	}

	params := make([]lir.Value, len(schedule.Params))
	for i, p := range schedule.Params {
		ty, sz := mapType(p)
		params[i] = tr.target.ParameterAt(ty, sz, i)
	}
	fn := tr.factory.NewFunction(schedule.Name, params)

	ft := &funcTranslation{
		fn:       fn,
		editor:   lir.NewEditor(fn),
		schedule: schedule,
		target:   tr.target,
		blockOf:  make(map[int]*lir.BasicBlock),
		values:   make(map[int]lir.Value),
	}

	ft.mapBlocks()
	if err := ft.emit(diags); err != nil {
		return nil, err
	}
	ft.fixupPhis()

	if errs := lir.NewValidator().ValidateFunction(fn); len(errs) > 0 {
		var first error
		for _, e := range errs {
			err := diags.Errorf(schedule.Name, "%s", e.Error())
			if first == nil {
				first = err
			}
		}
		return nil, first
	}
	return fn, nil
}

// funcTranslation carries one function's worth of translation state:
// the id-to-block map built by the block-mapping pass, the
// node-to-value cache built incrementally during emission, and the
// phi inputs still waiting on a not-yet-translated node (spec.md §4.2
// "Phi operands referencing not-yet-translated nodes are resolved in
// a final fixup pass").
type funcTranslation struct {
	fn       *lir.Function
	editor   *lir.Editor
	schedule *hir.Schedule
	target   lir.Target

	blockOf map[int]*lir.BasicBlock
	values  map[int]lir.Value

	pending []phiFixup
}

type phiFixup struct {
	instr *lir.Instruction
	index int
	input int
}

// mapBlocks is the translator's first pass (spec.md §4.2 "Block
// mapping"): every block-start node creates or adopts a LIR block.
func (ft *funcTranslation) mapBlocks() {
	for _, n := range ft.schedule.Nodes {
		if n.Kind.BlockRole() != hir.RoleBlockStart {
			continue
		}
		switch {
		case n.Kind == hir.KindEntry:
			ft.blockOf[n.ID] = ft.fn.Entry()
		default:
			ft.blockOf[n.ID] = ft.editor.NewBasicBlock(ft.fn.Exit())
		}
	}
}

// emit is the translator's second pass (spec.md §4.2 "emission"): for
// each scheduled node, dispatch on its block role and opcode.
func (ft *funcTranslation) emit(diags *diag.List) error {
	var scope *lir.EditScope
	var block *lir.BasicBlock

	for _, n := range ft.schedule.Nodes {
		switch n.Kind.BlockRole() {
		case hir.RoleBlockStart:
			block = ft.blockOf[n.ID]
			scope = ft.editor.Edit(block)
			continue
		case hir.RoleBlockEnd:
			if err := ft.emitBlockEnd(scope, block, n, diags); err != nil {
				return err
			}
			scope.Commit()
			scope, block = nil, nil
			continue
		}

		if err := ft.emitBody(scope, block, n, diags); err != nil {
			return err
		}
	}
	return nil
}

// appendBody inserts instr before the block's current terminator, if
// any (true only for the entry block, seeded with entry;ret by
// Factory.NewFunction), otherwise appends it — keeping the terminator
// last regardless of which block the translator is filling in.
func appendBody(scope *lir.EditScope, b *lir.BasicBlock, instr *lir.Instruction) {
	if term := b.Terminator(); term != nil {
		scope.InsertBefore(instr, term)
		return
	}
	scope.Append(instr)
}

func (ft *funcTranslation) emitBlockEnd(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node, diags *diag.List) error {
	switch n.Kind {
	case hir.KindJump:
		scope.SetJump(ft.blockOf[n.Targets[0]])
		return nil
	case hir.KindBranch:
		cond := ft.values[n.Inputs[0]]
		scope.SetBranch(cond, ft.blockOf[n.Targets[0]], ft.blockOf[n.Targets[1]])
		return nil
	case hir.KindRet:
		ft.emitReturnValue(scope, b, n)
		scope.SetReturn()
		return nil
	case hir.KindThrow, hir.KindUnreachable:
		return diags.Errorf(n, "unsupported lowering: %s is not implemented", n.Kind)
	default:
		return diags.Errorf(n, "unsupported lowering: %s is not a block-end node", n.Kind)
	}
}

// emitReturnValue implements spec.md §4.2's "ret: route the returned
// value through the calling-convention return register (with
// sign/zero extension for sub-32-bit integers) then emit ret." A ret
// with no input is a void return; SetReturn alone covers it.
func (ft *funcTranslation) emitReturnValue(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node) {
	if len(n.Inputs) == 0 {
		return
	}
	v := ft.values[n.Inputs[0]]
	retReg := ft.target.ReturnOf(v.Type(), v.Size())

	if v.Type() == lir.Int && v.Size() < lir.Size32 {
		widened := ft.fn.NewVirtualRegister(lir.Int, lir.Size32)
		appendBody(scope, b, lir.NewFixed(lir.OpSignExtend, []lir.Value{widened}, []lir.Value{v}))
		v = widened
	}
	appendBody(scope, b, lir.NewFixed(lir.OpMov, []lir.Value{retReg}, []lir.Value{v}))
}

// binaryOpcode maps a binary HIR arithmetic/logic kind directly onto
// its LIR opcode; the two enumerations share names on purpose so this
// table reads as a no-op at a glance.
var binaryOpcode = map[hir.NodeKind]lir.Opcode{
	hir.KindAdd:  lir.OpAdd,
	hir.KindSub:  lir.OpSub,
	hir.KindMul:  lir.OpMul,
	hir.KindDiv:  lir.OpDiv,
	hir.KindMod:  lir.OpMod,
	hir.KindUDiv: lir.OpUDiv,
	hir.KindUMod: lir.OpUMod,
	hir.KindAnd:  lir.OpAnd,
	hir.KindOr:   lir.OpOr,
	hir.KindXor:  lir.OpXor,
	hir.KindShl:  lir.OpShl,
	hir.KindShr:  lir.OpShr,
}

func (ft *funcTranslation) emitBody(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node, diags *diag.List) error {
	lits := ft.fn.Literals()
	ptrBytes := ft.target.PointerSizeInByte()

	switch n.Kind {
	case hir.KindLiteralInt:
		_, sz := mapType(n.Type)
		ft.values[n.ID] = intValue(lits, n.IntValue, sz)

	case hir.KindLiteralFloat:
		_, sz := mapType(n.Type)
		if sz == lir.Size32 {
			ft.values[n.ID] = lits.Float32(float32(n.FloatValue))
		} else {
			ft.values[n.ID] = lits.Float64(n.FloatValue)
		}

	case hir.KindLiteralString:
		ft.values[n.ID] = lits.String(n.StringValue)

	case hir.KindSizeOf:
		_, sz := mapType(n.Type)
		ft.values[n.ID] = intValue(lits, int64(n.SizeOfType.ByteSize(ptrBytes)), sz)

	case hir.KindParameter:
		ft.values[n.ID] = ft.fn.Params[n.IntValue]

	case hir.KindAdd, hir.KindSub, hir.KindMul, hir.KindDiv, hir.KindMod,
		hir.KindUDiv, hir.KindUMod, hir.KindAnd, hir.KindOr, hir.KindXor,
		hir.KindShl, hir.KindShr:
		ft.emitBinary(scope, b, n, binaryOpcode[n.Kind])

	case hir.KindNot:
		ft.emitUnary(scope, b, n, lir.OpNot)
	case hir.KindSignExtend:
		ft.emitUnary(scope, b, n, lir.OpSignExtend)
	case hir.KindZeroExtend:
		ft.emitUnary(scope, b, n, lir.OpZeroExtend)
	case hir.KindTruncate:
		ft.emitUnary(scope, b, n, lir.OpTruncate)
	case hir.KindBitcast:
		ft.emitUnary(scope, b, n, lir.OpBitcast)
	case hir.KindFloatToInt:
		ft.emitUnary(scope, b, n, lir.OpFloatToInt)
	case hir.KindIntToFloat:
		ft.emitUnary(scope, b, n, lir.OpIntToFloat)

	case hir.KindIntCmp:
		if err := ft.emitCompare(scope, b, n, lir.OpIntCmp, diags); err != nil {
			return err
		}
	case hir.KindFloatCmp:
		if err := ft.emitCompare(scope, b, n, lir.OpFloatCmp, diags); err != nil {
			return err
		}

	case hir.KindLoad:
		ty, sz := mapType(n.Type)
		out := ft.fn.NewVirtualRegister(ty, sz)
		addr := ft.values[n.Inputs[0]]
		appendBody(scope, b, lir.NewFixed(lir.OpLoad, []lir.Value{out}, []lir.Value{addr}))
		ft.values[n.ID] = out

	case hir.KindStore:
		addr := ft.values[n.Inputs[0]]
		val := ft.values[n.Inputs[1]]
		appendBody(scope, b, lir.NewFixed(lir.OpStore, nil, []lir.Value{addr, val}))

	case hir.KindElement:
		ft.emitElement(scope, b, n, ptrBytes)

	case hir.KindLength:
		ty, sz := mapType(n.Type)
		out := ft.fn.NewVirtualRegister(ty, sz)
		base := ft.values[n.Inputs[0]]
		appendBody(scope, b, lir.NewFixed(lir.OpLoad, []lir.Value{out}, []lir.Value{base}))
		ft.values[n.ID] = out

	case hir.KindCall:
		ft.emitCall(scope, b, n)

	case hir.KindGetData:
		ft.emitGetData(scope, b, n)

	case hir.KindPhi:
		ft.emitPhi(scope, b, n)

	case hir.KindMultiDimElement, hir.KindSwitch:
		return diags.Errorf(n, "unsupported lowering: %s is not implemented", n.Kind)

	default:
		return diags.Errorf(n, "unsupported lowering: unknown node kind %s", n.Kind)
	}
	return nil
}

func (ft *funcTranslation) emitBinary(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node, op lir.Opcode) {
	a := ft.values[n.Inputs[0]]
	c := ft.values[n.Inputs[1]]
	ty, sz := mapType(n.Type)
	out := ft.fn.NewVirtualRegister(ty, sz)
	appendBody(scope, b, lir.NewFixed(op, []lir.Value{out}, []lir.Value{a, c}))
	ft.values[n.ID] = out
}

func (ft *funcTranslation) emitUnary(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node, op lir.Opcode) {
	a := ft.values[n.Inputs[0]]
	ty, sz := mapType(n.Type)
	out := ft.fn.NewVirtualRegister(ty, sz)
	appendBody(scope, b, lir.NewFixed(op, []lir.Value{out}, []lir.Value{a}))
	ft.values[n.ID] = out
}

// cmpPredicate maps the surface-language comparison mnemonics
// hir.Node.CmpOp carries to an lir.Predicate.
var cmpPredicate = map[string]lir.Predicate{
	"eq":  lir.PredicateEQ,
	"ne":  lir.PredicateNE,
	"lt":  lir.PredicateLT,
	"le":  lir.PredicateLE,
	"gt":  lir.PredicateGT,
	"ge":  lir.PredicateGE,
	"ult": lir.PredicateULT,
	"ule": lir.PredicateULE,
	"ugt": lir.PredicateUGT,
	"uge": lir.PredicateUGE,
}

// emitCompare always produces an ordinary 8-bit virtual-register
// output rather than a raw KindCondition operand: spec.md §3.3
// requires every instruction output to be a register, and
// lir.Value.IsRegister() deliberately does not treat KindCondition as
// one (that kind exists for a downstream register allocator that
// might special-case flag results, out of scope here). A plain 8-bit
// vreg satisfies the invariant and is exactly what scope.SetBranch's
// condition input expects; the comparison actually performed still
// rides along on the instruction via its Predicate.
func (ft *funcTranslation) emitCompare(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node, op lir.Opcode, diags *diag.List) error {
	pred, ok := cmpPredicate[n.CmpOp]
	if !ok {
		return diags.Errorf(n, "unknown comparison predicate %q", n.CmpOp)
	}
	a := ft.values[n.Inputs[0]]
	c := ft.values[n.Inputs[1]]
	out := ft.fn.NewVirtualRegister(lir.Int, lir.Size8)
	appendBody(scope, b, lir.NewCompare(op, pred, out, []lir.Value{a, c}))
	ft.values[n.ID] = out
	return nil
}

// emitElement lowers single-dimension array/tuple element access to
// an address computation followed by a load: addr = base + index *
// elemSize. Multi-dimensional access is the spec's preserved
// unsupported-lowering path (see emitBody's KindMultiDimElement case),
// not handled here.
func (ft *funcTranslation) emitElement(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node, ptrBytes uint32) {
	base := ft.values[n.Inputs[0]]
	idx := ft.values[n.Inputs[1]]
	lits := ft.fn.Literals()

	elemSize := int64(n.SizeOfType.ByteSize(ptrBytes))
	scale := intValue(lits, elemSize, lir.Size64)

	scaled := ft.fn.NewVirtualRegister(lir.Int, lir.Size64)
	appendBody(scope, b, lir.NewFixed(lir.OpMul, []lir.Value{scaled}, []lir.Value{idx, scale}))

	addr := ft.fn.NewVirtualRegister(lir.Int, lir.Size64)
	appendBody(scope, b, lir.NewFixed(lir.OpAdd, []lir.Value{addr}, []lir.Value{base, scaled}))

	ty, sz := mapType(n.Type)
	out := ft.fn.NewVirtualRegister(ty, sz)
	appendBody(scope, b, lir.NewFixed(lir.OpLoad, []lir.Value{out}, []lir.Value{addr}))
	ft.values[n.ID] = out
}

// emitCall implements spec.md §6.4's argument slotting per call site:
// each argument lands in its calling-convention register or an
// outgoing stack slot, then the call itself records the stack-passed
// operands so transform.StackAllocator.TrackCall can size the
// outgoing-argument area, and the fixed return register (if any) as
// its own output — the indirection spec.md §4.2's "get-data" node
// later copies out.
func (ft *funcTranslation) emitCall(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node) {
	args := n.Inputs
	var callee lir.Value
	if n.Callee == "" && len(args) > 0 {
		callee = ft.values[args[0]]
		args = args[1:]
	}

	var stackArgs []lir.Value
	for i, inID := range args {
		v := ft.values[inID]
		dst := ft.target.ArgumentAt(v.Type(), v.Size(), i)
		if dst.IsRegister() {
			appendBody(scope, b, lir.NewFixed(lir.OpMov, []lir.Value{dst}, []lir.Value{v}))
		} else {
			appendBody(scope, b, lir.NewFixed(lir.OpStore, nil, []lir.Value{dst, v}))
			stackArgs = append(stackArgs, dst)
		}
	}

	var outputs []lir.Value
	if n.Type.Kind != hir.TypeInvalid {
		ty, sz := mapType(n.Type)
		outputs = []lir.Value{ft.target.ReturnOf(ty, sz)}
	}

	appendBody(scope, b, lir.NewCall(callee, n.Callee, stackArgs, outputs))
}

func (ft *funcTranslation) emitGetData(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node) {
	ty, sz := mapType(n.Type)
	fixed := ft.target.ReturnOf(ty, sz)
	out := ft.fn.NewVirtualRegister(ty, sz)
	appendBody(scope, b, lir.NewFixed(lir.OpMov, []lir.Value{out}, []lir.Value{fixed}))
	ft.values[n.ID] = out
}

// emitPhi builds the phi with every predecessor slot pre-populated
// (so the instruction has the right shape the moment it is inserted)
// but leaves inputs whose HIR value has not yet been translated as a
// placeholder, deferring the real value to the fixup pass spec.md
// §4.2 calls for.
func (ft *funcTranslation) emitPhi(scope *lir.EditScope, b *lir.BasicBlock, n hir.Node) {
	ty, sz := mapType(n.Type)
	out := ft.fn.NewVirtualRegister(ty, sz)
	phi := lir.NewPhi(out)

	for i, inID := range n.Inputs {
		pred := ft.blockOf[n.PhiPreds[i]]
		placeholder := zeroPlaceholder(ft.fn, ty, sz)
		phi.PhiInputs = append(phi.PhiInputs, lir.PhiInput{Pred: pred, Value: placeholder})
		if v, ok := ft.values[inID]; ok {
			phi.PhiInputs[i].Value = v
			continue
		}
		ft.pending = append(ft.pending, phiFixup{instr: phi, index: i, input: inID})
	}

	scope.Append(phi)
	ft.values[n.ID] = out
}

// fixupPhis resolves every deferred phi input now that every node in
// the schedule has been translated (spec.md §4.2's final fixup pass).
func (ft *funcTranslation) fixupPhis() {
	for _, fx := range ft.pending {
		val, ok := ft.values[fx.input]
		if !ok {
			continue // the owning node failed to translate; already diagnosed.
		}
		scope := ft.editor.Edit(fx.instr.Block())
		scope.SetInput(fx.instr, fx.index, val)
		scope.Commit()
	}
}

// mapType implements spec.md §4.2's type-mapping rule: float types map
// to float of matching size, integer types to integer of matching
// size, pointers and all compound types collapse to a 64-bit integer.
func mapType(t hir.Type) (lir.Type, lir.Size) {
	switch t.Kind {
	case hir.TypeInt8:
		return lir.Int, lir.Size8
	case hir.TypeInt16:
		return lir.Int, lir.Size16
	case hir.TypeInt32:
		return lir.Int, lir.Size32
	case hir.TypeInt64:
		return lir.Int, lir.Size64
	case hir.TypeFloat32:
		return lir.Float, lir.Size32
	case hir.TypeFloat64:
		return lir.Float, lir.Size64
	default:
		return lir.Int, lir.Size64
	}
}

// intValue implements spec.md §4.2's literal-value mapping rule:
// "HIR literal -> deduplicated LIR literal or small immediate." 8/16
// bit values are always immediate-eligible; wider values are inlined
// only if they fit this backend's 24-bit immediate payload (see
// lir.NewImmediate), else they go through the literal map.
func intValue(lits *lir.LiteralMap, v int64, size lir.Size) lir.Value {
	if size == lir.Size8 || size == lir.Size16 {
		return lir.NewImmediate(lir.Int, size, v)
	}
	// Size64 never has an inline immediate form (lir.NewImmediate's
	// default case panics for anything past Size32) — it must always
	// go through the literal map, regardless of whether v would
	// otherwise fit the 24-bit payload. zeroPlaceholder observes the
	// same rule for its own Size64 case.
	if size == lir.Size64 {
		return lits.Int(v, size)
	}
	const minImm, maxImm = -(1 << 23), (1 << 23) - 1
	if v >= minImm && v <= maxImm {
		return lir.NewImmediate(lir.Int, size, v)
	}
	return lits.Int(v, size)
}

// zeroPlaceholder fills a not-yet-resolved phi input slot with a
// harmless, correctly-(type,size)d value, rather than the Value zero
// value (which would misreport as an 8-bit integer immediate
// regardless of the phi's real type). The fixup pass always
// overwrites it before the function is handed to any later pass.
func zeroPlaceholder(fn *lir.Function, ty lir.Type, sz lir.Size) lir.Value {
	if ty == lir.Float {
		if sz == lir.Size32 {
			return fn.Literals().Float32(0)
		}
		return fn.Literals().Float64(0)
	}
	if sz == lir.Size64 {
		return fn.Literals().Int(0, lir.Size64)
	}
	return lir.NewImmediate(ty, sz, 0)
}
