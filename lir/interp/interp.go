// Package interp is a small decode-execute evaluator for pre-lowering
// LIR (three-address, generic opcodes — before lir/x64.Lowering has
// rewritten anything to a two-address or machine-specific pseudo-op
// form). It exists purely as a test oracle: it lets a test build a
// hir.Schedule, run it through translate.Translator (optionally
// transform.Clean and transform.PreparePhiInversion), and check the
// resulting function actually computes what the schedule meant,
// without needing a real x64 CPU to run the emitter's output on.
//
// The dispatch loop below is grounded on vm/exec.go's
// execNextInstruction switch — a decode-execute loop over one
// instruction stream — generalized from that VM's flat register/stack
// machine to this backend's graph of basic blocks tied together by
// Jump/Branch/Ret and fed by Phi at block entry.
package interp

import (
	"fmt"
	"math"

	"lirc/lir"
)

// External is a stand-in for a function this package does not itself
// translate — the interpreter's equivalent of a call out to the
// teacher's vm/devices.go device table.
type External func(args []int64) int64

// Interp evaluates one lir.Function at a time against a shared table
// of external callees.
type Interp struct {
	externals map[string]External
}

func New() *Interp {
	return &Interp{externals: make(map[string]External)}
}

// Bind registers the function an OpCall naming calleeName should
// invoke when the interpreter reaches it.
func (in *Interp) Bind(calleeName string, fn External) {
	in.externals[calleeName] = fn
}

// env holds every register's current value, split by type since a
// single int64 map can't distinguish an integer zero from a float
// zero once both are stored as raw bits without also tracking which
// one a Value is.
type env struct {
	ints   map[lir.Value]int64
	floats map[lir.Value]float64
}

func newEnv() *env {
	return &env{ints: make(map[lir.Value]int64), floats: make(map[lir.Value]float64)}
}

func (e *env) setInt(v lir.Value, x int64)     { e.ints[v] = x }
func (e *env) setFloat(v lir.Value, x float64) { e.floats[v] = x }

// Run interprets fn with args bound to its parameters in order and
// returns the function's return value: the register the translator
// moves it into just before Ret (0 for a void return). args/floats
// are both accepted as int64; a float64 argument must be pre-encoded
// with math.Float64bits (mirroring how the translator's own zero
// placeholders work) since this oracle only ever feeds in what test
// fixtures already compute in Go.
func (in *Interp) Run(fn *lir.Function, args []int64) (int64, error) {
	e := newEnv()
	lits := fn.Literals()
	for i, p := range fn.Params {
		bindParam(e, p, args[i])
	}

	block := fn.Entry()
	var prevBlock *lir.BasicBlock

	for block != nil {
		for _, phi := range block.Phis() {
			in := phiInput(phi, prevBlock)
			out := phi.Output(0)
			if out.Type() == lir.Float {
				e.setFloat(out, e.readFloat(lits, in))
			} else {
				e.setInt(out, e.readInt(lits, in))
			}
		}

		var next *lir.BasicBlock
		var retVal int64
		var returned bool
		// regWrites lists the physical registers this block has moved a
		// value into since its last call: the translator loads register
		// call arguments and the return value that way, while Ret's own
		// operand is only the exit-block reference.
		var regWrites []lir.Value

		for _, instr := range block.Instructions() {
			switch instr.Op {
			case lir.OpEntry, lir.OpExit:
				// no-op markers
			case lir.OpJump:
				next = resolveBlock(lits, instr.Input(0))
			case lir.OpBranch:
				cond := e.readInt(lits, instr.Input(0))
				if cond != 0 {
					next = resolveBlock(lits, instr.Input(1))
				} else {
					next = resolveBlock(lits, instr.Input(2))
				}
			case lir.OpRet:
				returned = true
				if n := len(regWrites); n > 0 {
					out := regWrites[n-1]
					if out.Type() == lir.Float {
						retVal = int64(math.Float64bits(e.floats[out]))
					} else {
						retVal = e.ints[out]
					}
				}
			case lir.OpCall:
				if err := in.evalCall(e, lits, instr, regWrites); err != nil {
					return 0, err
				}
				regWrites = nil
			default:
				if err := in.evalGeneric(e, lits, instr); err != nil {
					return 0, err
				}
				if instr.Op == lir.OpMov && instr.Output(0).Kind() == lir.KindPhysical {
					regWrites = append(regWrites, instr.Output(0))
				}
			}
		}

		if returned {
			return retVal, nil
		}
		prevBlock, block = block, next
	}
	return 0, fmt.Errorf("interp: fell off the end of %s without a ret", fn.Name)
}

func bindParam(e *env, p lir.Value, v int64) {
	if p.Type() == lir.Float {
		e.setFloat(p, math.Float64frombits(uint64(v)))
		return
	}
	e.setInt(p, v)
}

func phiInput(phi *lir.Instruction, pred *lir.BasicBlock) lir.Value {
	for _, pi := range phi.PhiInputs {
		if pi.Pred == pred {
			return pi.Value
		}
	}
	panic("interp: phi has no input for the predecessor actually taken")
}

func resolveBlock(lits *lir.LiteralMap, v lir.Value) *lir.BasicBlock {
	lit := lits.Get(v.UData())
	if lit.Kind != lir.LiteralBlock {
		panic("interp: jump/branch operand is not a block reference")
	}
	return lit.Block
}

func (e *env) readInt(lits *lir.LiteralMap, v lir.Value) int64 {
	switch v.Kind() {
	case lir.KindImmediate:
		return int64(v.Data())
	case lir.KindLiteral:
		lit := lits.Get(v.UData())
		switch lit.Kind {
		case lir.LiteralInt32:
			return int64(lit.I32)
		case lir.LiteralInt64:
			return lit.I64
		default:
			panic(fmt.Sprintf("interp: literal kind %d is not an integer", lit.Kind))
		}
	default:
		return e.ints[v]
	}
}

func (e *env) readFloat(lits *lir.LiteralMap, v lir.Value) float64 {
	if v.Kind() == lir.KindLiteral {
		lit := lits.Get(v.UData())
		switch lit.Kind {
		case lir.LiteralFloat32:
			return float64(lit.F32)
		case lir.LiteralFloat64:
			return lit.F64
		default:
			panic(fmt.Sprintf("interp: literal kind %d is not a float", lit.Kind))
		}
	}
	return e.floats[v]
}

// evalCall passes the external its register arguments (regArgs, in
// the order they were loaded) followed by the call's own CallInputs.
func (in *Interp) evalCall(e *env, lits *lir.LiteralMap, instr *lir.Instruction, regArgs []lir.Value) error {
	name := instr.Callee
	fn, ok := in.externals[name]
	if !ok {
		return fmt.Errorf("interp: no external bound for call to %q", name)
	}
	args := make([]int64, 0, len(regArgs)+len(instr.CallInputs))
	for _, a := range regArgs {
		args = append(args, e.readInt(lits, a))
	}
	for _, a := range instr.CallInputs {
		args = append(args, e.readInt(lits, a))
	}
	result := fn(args)
	for _, out := range instr.CallOutputs {
		e.setInt(out, result)
	}
	return nil
}

// evalGeneric covers every opcode the fixtures in internal/testfixture
// actually exercise (mov, casts, arithmetic, comparisons). Load/Store/
// StackAlloc fall through to the default "unsupported opcode" error
// below since no fixture needs memory semantics; add a case here if
// one ever does.
func (in *Interp) evalGeneric(e *env, lits *lir.LiteralMap, instr *lir.Instruction) error {
	isFloat := instr.Op == lir.OpFloatCmp
	if instr.NumInputs() > 0 {
		isFloat = isFloat || instr.Input(0).Type() == lir.Float
	}

	switch instr.Op {
	case lir.OpMov:
		out := instr.Output(0)
		if out.Type() == lir.Float {
			e.setFloat(out, e.readFloat(lits, instr.Input(0)))
		} else {
			e.setInt(out, e.readInt(lits, instr.Input(0)))
		}
		return nil

	case lir.OpSignExtend, lir.OpZeroExtend, lir.OpTruncate, lir.OpBitcast:
		e.setInt(instr.Output(0), e.readInt(lits, instr.Input(0)))
		return nil

	case lir.OpIntToFloat:
		e.setFloat(instr.Output(0), float64(e.readInt(lits, instr.Input(0))))
		return nil

	case lir.OpFloatToInt:
		e.setInt(instr.Output(0), int64(e.readFloat(lits, instr.Input(0))))
		return nil

	case lir.OpIntCmp, lir.OpFloatCmp:
		var res bool
		if instr.Op == lir.OpFloatCmp {
			a, b := e.readFloat(lits, instr.Input(0)), e.readFloat(lits, instr.Input(1))
			res = evalPredicateFloat(instr.Predicate, a, b)
		} else {
			a, b := e.readInt(lits, instr.Input(0)), e.readInt(lits, instr.Input(1))
			res = evalPredicateInt(instr.Predicate, a, b)
		}
		v := int64(0)
		if res {
			v = 1
		}
		e.setInt(instr.Output(0), v)
		return nil
	}

	if isFloat {
		a := e.readFloat(lits, instr.Input(0))
		var b float64
		if instr.NumInputs() > 1 {
			b = e.readFloat(lits, instr.Input(1))
		}
		r, err := evalArithFloat(instr.Op, a, b)
		if err != nil {
			return err
		}
		e.setFloat(instr.Output(0), r)
		return nil
	}

	a := e.readInt(lits, instr.Input(0))
	var b int64
	if instr.NumInputs() > 1 {
		b = e.readInt(lits, instr.Input(1))
	}
	r, err := evalArithInt(instr.Op, a, b)
	if err != nil {
		return err
	}
	e.setInt(instr.Output(0), r)
	return nil
}

func evalArithInt(op lir.Opcode, a, b int64) (int64, error) {
	switch op {
	case lir.OpAdd:
		return a + b, nil
	case lir.OpSub:
		return a - b, nil
	case lir.OpMul:
		return a * b, nil
	case lir.OpDiv:
		if b == 0 {
			return 0, fmt.Errorf("interp: division by zero")
		}
		return a / b, nil
	case lir.OpMod:
		if b == 0 {
			return 0, fmt.Errorf("interp: division by zero")
		}
		return a % b, nil
	case lir.OpUDiv:
		if b == 0 {
			return 0, fmt.Errorf("interp: division by zero")
		}
		return int64(uint64(a) / uint64(b)), nil
	case lir.OpUMod:
		if b == 0 {
			return 0, fmt.Errorf("interp: division by zero")
		}
		return int64(uint64(a) % uint64(b)), nil
	case lir.OpAnd:
		return a & b, nil
	case lir.OpOr:
		return a | b, nil
	case lir.OpXor:
		return a ^ b, nil
	case lir.OpNot:
		return ^a, nil
	case lir.OpShl:
		return a << uint(b), nil
	case lir.OpShr:
		return a >> uint(b), nil
	default:
		return 0, fmt.Errorf("interp: unsupported opcode %s", op)
	}
}

func evalArithFloat(op lir.Opcode, a, b float64) (float64, error) {
	switch op {
	case lir.OpAdd:
		return a + b, nil
	case lir.OpSub:
		return a - b, nil
	case lir.OpMul:
		return a * b, nil
	case lir.OpDiv:
		return a / b, nil
	default:
		return 0, fmt.Errorf("interp: unsupported float opcode %s", op)
	}
}

func evalPredicateInt(p lir.Predicate, a, b int64) bool {
	switch p {
	case lir.PredicateEQ:
		return a == b
	case lir.PredicateNE:
		return a != b
	case lir.PredicateLT:
		return a < b
	case lir.PredicateLE:
		return a <= b
	case lir.PredicateGT:
		return a > b
	case lir.PredicateGE:
		return a >= b
	case lir.PredicateULT:
		return uint64(a) < uint64(b)
	case lir.PredicateULE:
		return uint64(a) <= uint64(b)
	case lir.PredicateUGT:
		return uint64(a) > uint64(b)
	case lir.PredicateUGE:
		return uint64(a) >= uint64(b)
	default:
		return false
	}
}

func evalPredicateFloat(p lir.Predicate, a, b float64) bool {
	switch p {
	case lir.PredicateEQ:
		return a == b
	case lir.PredicateNE:
		return a != b
	case lir.PredicateLT:
		return a < b
	case lir.PredicateLE:
		return a <= b
	case lir.PredicateGT:
		return a > b
	case lir.PredicateGE:
		return a >= b
	default:
		return false
	}
}
