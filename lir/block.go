package lir

// BasicBlock owns an ordered list of phi instructions and an ordered
// list of ordinary instructions, the last of which is a terminator
// (spec.md §3.4). Predecessor/successor sets are not stored directly;
// they are derived on demand from the terminator's block operands and
// from uses of this block's literal-map reference, exactly as spec.md
// §3.4 specifies ("implicit ... derived from uses of the block's
// reference value").
type BasicBlock struct {
	fn *Function
	id int

	phis  []*Instruction
	instr []*Instruction

	name string
}

func (b *BasicBlock) ID() int          { return b.id }
func (b *BasicBlock) Function() *Function { return b.fn }

// Name returns a debug-friendly label; blocks are unnamed by default
// and print as "bb<id>".
func (b *BasicBlock) Name() string {
	if b.name != "" {
		return b.name
	}
	return blockLabel(b.id)
}

func (b *BasicBlock) SetName(name string) { b.name = name }

func blockLabel(id int) string {
	return "bb" + itoa(id)
}

// itoa avoids pulling in strconv for this one call site's worth of use
// across hot formatting paths; kept trivial on purpose.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Phis returns the block's phi instructions in order.
func (b *BasicBlock) Phis() []*Instruction { return b.phis }

// Instructions returns the block's ordinary (non-phi) instructions in
// order; the last one is always the terminator once the block has
// been committed (spec.md §3.3/§3.4).
func (b *BasicBlock) Instructions() []*Instruction { return b.instr }

// Terminator returns the block's last ordinary instruction, or nil if
// the block has none yet (only true for a block still under
// construction by the Editor).
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.instr) == 0 {
		return nil
	}
	last := b.instr[len(b.instr)-1]
	if last.Op.IsTerminator() {
		return last
	}
	return nil
}

// IsEmptyJump reports whether the block's only ordinary instruction is
// an unconditional jump, the shape the Clean pass (transform.Clean)
// looks for when splicing blocks out (spec.md §4.4 rule 2).
func (b *BasicBlock) IsEmptyJump() bool {
	return len(b.phis) == 0 && len(b.instr) == 1 && b.instr[0].Op == OpJump
}

// Successors resolves the block's successor set from its terminator's
// block-valued operands, per spec.md §3.4.
func (b *BasicBlock) Successors() []*BasicBlock {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	lits := b.fn.literals()
	switch term.Op {
	case OpJump:
		return []*BasicBlock{resolveBlock(lits, term.Input(0))}
	case OpBranch:
		return []*BasicBlock{resolveBlock(lits, term.Input(1)), resolveBlock(lits, term.Input(2))}
	case OpRet:
		return []*BasicBlock{resolveBlock(lits, term.Input(0))}
	case OpExit:
		return nil
	default:
		return nil
	}
}

func resolveBlock(lits *LiteralMap, v Value) *BasicBlock {
	if v.Kind() != KindLiteral {
		panic("lir: expected a block-literal operand")
	}
	lit := lits.Get(v.UData())
	if lit.Kind != LiteralBlock {
		panic("lir: literal operand does not reference a basic block")
	}
	return lit.Block
}

// Predecessors resolves the block's predecessor set by scanning every
// block in the function for a terminator that names b as a successor.
// This is O(blocks) per call; callers that need it repeatedly (the
// Validator, the Clean pass) compute it once per pass via
// Function.PredecessorMap instead.
func (b *BasicBlock) Predecessors() []*BasicBlock {
	var preds []*BasicBlock
	for _, other := range b.fn.Blocks() {
		for _, succ := range other.Successors() {
			if succ == b {
				preds = append(preds, other)
				break
			}
		}
	}
	return preds
}
