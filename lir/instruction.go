package lir

import "fmt"

// maxFixedSlots covers every fixed-arity opcode this backend defines;
// OpX64Div's 3-in/2-out shape is the widest. Variadic opcodes
// (Phi/PCopy/Call) ignore these arrays and use Extra instead.
const maxFixedSlots = 3

// PhiInput pairs a predecessor block with the value flowing in from
// it, per spec.md §3.3 "phi".
type PhiInput struct {
	Pred  *BasicBlock
	Value Value
}

// Predicate distinguishes which comparison an OpIntCmp/OpFloatCmp
// instruction performs. It rides alongside the opcode rather than
// expanding the opcode enumeration into one variant per predicate,
// since every other consumer of Opcode (lowering, the emitter's
// dispatch table, IsArithmetic/IsDivOrMod/...) only cares that the
// instruction is "a comparison", never which one.
type Predicate uint8

const (
	PredicateNone Predicate = iota
	PredicateEQ
	PredicateNE
	PredicateLT
	PredicateLE
	PredicateGT
	PredicateGE
	// PredicateULT/ULE/UGT/UGE are the unsigned-integer orderings;
	// meaningless for OpFloatCmp, whose orderings are always signed.
	PredicateULT
	PredicateULE
	PredicateUGT
	PredicateUGE
)

var predicateNames = map[Predicate]string{
	PredicateNone: "",
	PredicateEQ:   "eq",
	PredicateNE:   "ne",
	PredicateLT:   "lt",
	PredicateLE:   "le",
	PredicateGT:   "gt",
	PredicateGE:   "ge",
	PredicateULT:  "ult",
	PredicateULE:  "ule",
	PredicateUGT:  "ugt",
	PredicateUGE:  "uge",
}

func (p Predicate) String() string {
	if s, ok := predicateNames[p]; ok {
		return s
	}
	return "?predicate?"
}

// Instruction is one LIR graph node. Most opcodes use the fixed
// Outputs/Inputs arrays; Phi additionally (its output in Outputs[0])
// and ParallelCopy and Call instead use the variadic fields below. This
// split mirrors the teacher's Instruction struct being one fixed 8-byte
// layout for the overwhelming majority of bytecodes, with variable
// behavior (push/pop's optional stack argument) handled by a small
// number of specially-cased opcodes rather than by making every
// instruction variable width.
type Instruction struct {
	Op Opcode

	// Predicate is meaningful only for Op == OpIntCmp/OpFloatCmp; see
	// NewCompare.
	Predicate Predicate

	numOutputs int
	numInputs  int
	Outputs    [maxFixedSlots]Value
	Inputs     [maxFixedSlots]Value

	// PhiInputs is populated only for Op == OpPhi.
	PhiInputs []PhiInput
	// CopyInputs/CopyOutputs are populated only for Op == OpPCopy; they
	// are always equal length (spec.md §3.3).
	CopyOutputs []Value
	CopyInputs  []Value
	// CallInputs starts with the callee reference/register for an
	// indirect call (Callee empty) and then holds the stack-passed
	// argument slots NewCall records; register-passed arguments are
	// moved into their registers before the call and do not appear.
	CallInputs []Value
	// CallOutputs holds the optional return-value registers.
	CallOutputs []Value

	// Callee names the symbol a Call targets when it is a direct call
	// to an external function (spec.md §4.6 "set_call_site"). Empty
	// for indirect calls, where CallInputs[0] carries the callee
	// value instead.
	Callee string

	block *BasicBlock
	id    int // 0 means "detached" (cleared on removal, spec.md §3.3)
}

// ID returns the instruction's insertion-order id, or 0 if detached.
func (i *Instruction) ID() int { return i.id }

// Block returns the basic block this instruction belongs to, or nil
// if detached (spec.md §3.3).
func (i *Instruction) Block() *BasicBlock { return i.block }

func (i *Instruction) NumOutputs() int {
	if i.Op.IsVariadic() {
		if i.Op == OpPCopy {
			return len(i.CopyOutputs)
		}
		if i.Op == OpCall {
			return len(i.CallOutputs)
		}
		return 1 // phi
	}
	return i.numOutputs
}

func (i *Instruction) NumInputs() int {
	switch i.Op {
	case OpPhi:
		return len(i.PhiInputs)
	case OpPCopy:
		return len(i.CopyInputs)
	case OpCall:
		return len(i.CallInputs)
	default:
		return i.numInputs
	}
}

func (i *Instruction) Output(idx int) Value {
	if i.Op == OpPCopy {
		return i.CopyOutputs[idx]
	}
	if i.Op == OpCall {
		return i.CallOutputs[idx]
	}
	if i.Op == OpPhi {
		return i.Outputs[0]
	}
	return i.Outputs[idx]
}

func (i *Instruction) SetOutput(idx int, v Value) {
	if !v.IsRegister() {
		panic(fmt.Sprintf("lir: output operand must be a register, got %s", v.Kind()))
	}
	switch i.Op {
	case OpPCopy:
		i.CopyOutputs[idx] = v
	case OpCall:
		i.CallOutputs[idx] = v
	default:
		i.Outputs[idx] = v
		if idx >= i.numOutputs {
			i.numOutputs = idx + 1
		}
	}
}

func (i *Instruction) Input(idx int) Value {
	switch i.Op {
	case OpPhi:
		return i.PhiInputs[idx].Value
	case OpPCopy:
		return i.CopyInputs[idx]
	case OpCall:
		return i.CallInputs[idx]
	default:
		return i.Inputs[idx]
	}
}

func (i *Instruction) SetInput(idx int, v Value) {
	switch i.Op {
	case OpPhi:
		in := i.PhiInputs[idx]
		in.Value = v
		i.PhiInputs[idx] = in
	case OpPCopy:
		i.CopyInputs[idx] = v
	case OpCall:
		i.CallInputs[idx] = v
	default:
		i.Inputs[idx] = v
		if idx >= i.numInputs {
			i.numInputs = idx + 1
		}
	}
}

// NewFixed builds a fixed-arity instruction. Outputs/inputs beyond
// those supplied stay zero and are not counted — callers pass exactly
// the slots the opcode needs.
func NewFixed(op Opcode, outputs, inputs []Value) *Instruction {
	if op.IsVariadic() {
		panic(fmt.Sprintf("lir: %s is variadic, use NewPhi/NewParallelCopy/NewCall", op))
	}
	instr := &Instruction{Op: op}
	for idx, v := range outputs {
		instr.SetOutput(idx, v)
	}
	for idx, v := range inputs {
		instr.Inputs[idx] = v
	}
	instr.numInputs = len(inputs)
	return instr
}

// NewCompare builds an OpIntCmp/OpFloatCmp instruction carrying pred,
// which the emitter/lowering would consult to pick the right x64
// condition code for a real backend (this one's emitter documents why
// it does not go that far).
func NewCompare(op Opcode, pred Predicate, output Value, inputs []Value) *Instruction {
	if op != OpIntCmp && op != OpFloatCmp {
		panic(fmt.Sprintf("lir: %s is not a comparison opcode", op))
	}
	instr := NewFixed(op, []Value{output}, inputs)
	instr.Predicate = pred
	return instr
}

// NewPhi builds a variadic phi instruction with one output register
// and no inputs yet; inputs are populated per-predecessor as the
// translator (or the phi-inversion-prep pass rewriting a predecessor
// name) discovers them.
func NewPhi(output Value) *Instruction {
	if !output.IsRegister() {
		panic("lir: phi output must be a register")
	}
	return &Instruction{Op: OpPhi, Outputs: [maxFixedSlots]Value{output}, numOutputs: 1}
}

// NewParallelCopy builds a parallel-copy instruction. outputs and
// inputs must be equal length per spec.md §3.3.
func NewParallelCopy(outputs, inputs []Value) *Instruction {
	if len(outputs) != len(inputs) {
		panic("lir: parallel-copy outputs and inputs must be equal length")
	}
	return &Instruction{Op: OpPCopy, CopyOutputs: append([]Value(nil), outputs...), CopyInputs: append([]Value(nil), inputs...)}
}

// NewCall builds a variadic call instruction. callee is either a
// register/reference Value (indirect call) or the zero Value paired
// with a non-empty calleeName (direct call to an external symbol).
// stackArgs are the (already calling-convention-assigned) stack-slot
// operands for arguments beyond the register-passed ones; they exist
// on the instruction purely so transform.StackAllocator.TrackCall can
// size the outgoing-argument area (spec.md §4.5) without the
// allocator needing to re-derive the calling convention itself.
func NewCall(callee Value, calleeName string, stackArgs []Value, outputs []Value) *Instruction {
	instr := &Instruction{Op: OpCall, Callee: calleeName}
	if calleeName == "" {
		instr.CallInputs = append(instr.CallInputs, callee)
	}
	instr.CallInputs = append(instr.CallInputs, stackArgs...)
	instr.CallOutputs = append([]Value(nil), outputs...)
	return instr
}

func (i *Instruction) String() string {
	s := i.Op.String()
	if n := i.NumOutputs(); n > 0 {
		s += " "
		for idx := 0; idx < n; idx++ {
			if idx > 0 {
				s += ", "
			}
			s += i.Output(idx).String()
		}
		s += " ="
	}
	if i.Op == OpPhi {
		for idx, in := range i.PhiInputs {
			if idx > 0 {
				s += ","
			}
			s += fmt.Sprintf(" [%s: %s]", in.Pred.Name(), in.Value)
		}
		return s
	}
	n := i.NumInputs()
	for idx := 0; idx < n; idx++ {
		if idx > 0 {
			s += ","
		}
		s += " " + i.Input(idx).String()
	}
	if i.Callee != "" {
		s += " " + i.Callee
	}
	return s
}
