package lir

import "fmt"

// ValidationError is one structural violation found by the Validator.
// The Validator accumulates these and returns the list rather than
// aborting (spec.md §4.7, §7 "Validation failures ... Accumulated, not
// thrown").
type ValidationError struct {
	Function *Function
	Block    *BasicBlock
	Instr    *Instruction
	Message  string
}

func (e ValidationError) Error() string {
	switch {
	case e.Instr != nil:
		return fmt.Sprintf("%s: in %s/%s: %s", e.Function.Name, e.Block.Name(), e.Instr.Op, e.Message)
	case e.Block != nil:
		return fmt.Sprintf("%s: in %s: %s", e.Function.Name, e.Block.Name(), e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Function.Name, e.Message)
	}
}

// Validator re-runs the structural checks of spec.md §3 and §8: block
// non-emptiness, terminator uniqueness, entry/exit exactness,
// predecessor/successor consistency, phi input coverage, operand
// type/size compatibility. It is deliberately kept separable from
// Editor (spec.md §9 "Validator as observer": "same result in release
// and debug, same algorithm used pre- and post-pass") so tests can
// assert properties on a Function built without ever going through
// debug-mode Commit.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// ValidateFunction runs every check against fn and returns the
// accumulated failures (nil if none).
func (v *Validator) ValidateFunction(fn *Function) []ValidationError {
	var errs []ValidationError
	report := func(b *BasicBlock, instr *Instruction, format string, args ...any) {
		errs = append(errs, ValidationError{Function: fn, Block: b, Instr: instr, Message: fmt.Sprintf(format, args...)})
	}

	if len(fn.blocks) == 0 {
		report(nil, nil, "function has no blocks")
		return errs
	}

	preds := fn.PredecessorMap()
	entry, exit := fn.Entry(), fn.Exit()

	entryCount, exitCount := 0, 0
	for _, b := range fn.blocks {
		if len(b.instr) == 0 {
			report(b, nil, "block has no instructions")
			continue
		}
		if b.instr[0].Op == OpEntry {
			entryCount++
		}
		if b.instr[len(b.instr)-1].Op == OpExit {
			exitCount++
		}

		// terminator uniqueness: exactly the last instruction may be a
		// terminator.
		for idx, instr := range b.instr {
			isLast := idx == len(b.instr)-1
			if instr.Op.IsTerminator() && !isLast {
				report(b, instr, "terminator is not the last instruction in its block")
			}
			if !instr.Op.IsTerminator() && isLast {
				report(b, instr, "block does not end in a terminator")
			}
		}

		// predecessor/successor consistency (spec.md §8.1/§8.2).
		predCount := len(preds[b])
		if b != entry && predCount == 0 {
			report(b, nil, "unreachable block (no predecessors) other than entry")
		}
		if b == entry && predCount != 0 {
			report(b, nil, "entry block has %d predecessor(s), expected 0", predCount)
		}
		succCount := len(b.Successors())
		if b != exit && succCount == 0 {
			report(b, nil, "block has no successor other than exit")
		}
		if b == exit && succCount != 0 {
			report(b, nil, "exit block has %d successor(s), expected 0", succCount)
		}

		// phi input coverage (spec.md §8.4): every predecessor appears
		// exactly once.
		blockPreds := preds[b]
		for _, phi := range b.phis {
			seen := make(map[*BasicBlock]int, len(phi.PhiInputs))
			for _, in := range phi.PhiInputs {
				seen[in.Pred]++
			}
			for _, p := range blockPreds {
				if seen[p] != 1 {
					report(b, phi, "phi input for predecessor %s appears %d times, expected 1", p.Name(), seen[p])
				}
				delete(seen, p)
			}
			for extra := range seen {
				report(b, phi, "phi names %s which is not a predecessor of this block", extra.Name())
			}
		}

		// output-kind and arithmetic operand checks (spec.md §8.5/§8.6).
		for _, instr := range allInstructions(b) {
			for i := 0; i < instr.NumOutputs(); i++ {
				out := instr.Output(i)
				if !out.IsRegister() {
					report(b, instr, "output %d has non-register kind %s", i, out.Kind())
				}
			}
			if instr.Op.IsArithmetic() {
				validateArithmeticOperands(report, b, instr)
			}
		}
	}

	if entryCount != 1 {
		report(nil, nil, "expected exactly 1 entry block, found %d", entryCount)
	}
	if exitCount != 1 {
		report(nil, nil, "expected exactly 1 exit block, found %d", exitCount)
	}

	return errs
}

func allInstructions(b *BasicBlock) []*Instruction {
	all := make([]*Instruction, 0, len(b.phis)+len(b.instr))
	all = append(all, b.phis...)
	all = append(all, b.instr...)
	return all
}

func validateArithmeticOperands(report func(*BasicBlock, *Instruction, string, ...any), b *BasicBlock, instr *Instruction) {
	if instr.NumOutputs() == 0 || instr.NumInputs() == 0 {
		return
	}
	out := instr.Output(0)
	for i := 0; i < instr.NumInputs(); i++ {
		in := instr.Input(i)
		if in.Kind() == KindImmediate || in.Kind() == KindLiteral {
			// immediates/literals are widened/narrowed by the encoder;
			// only register/memory operands must agree exactly.
			continue
		}
		if in.Type() != out.Type() {
			report(b, instr, "input %d type %s does not match output type %s", i, in.Type(), out.Type())
		}
		if in.Size() != out.Size() {
			report(b, instr, "input %d size %d does not match output size %d", i, in.Size(), out.Size())
		}
	}
}
