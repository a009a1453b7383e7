package lir

// Function owns an ordered list of basic blocks (first = entry, last =
// exit), a parameter-value vector, and a monotonic id (spec.md §3.5).
// Parameters are pre-assigned to physical registers or parameter slots
// per the target calling convention by the translator before the
// function is handed to any later pass.
type Function struct {
	factory *Factory
	id      int
	Name    string

	blocks []*BasicBlock
	Params []Value

	// ExceptionHandlers is reserved for a future unwind-table pass;
	// this backend never populates it (exception-handling tables are
	// an explicit Non-goal), but the translator's dispatch table needs
	// somewhere to record an exception-entry block-start node's target
	// (spec.md §3.6), so the field exists rather than being invented
	// ad hoc later.
	ExceptionHandlers []*BasicBlock

	nextBlockID  int
	nextInstrID  int
	nextVRegID   int
}

func (f *Function) ID() int   { return f.id }
func (f *Function) Blocks() []*BasicBlock { return f.blocks }
func (f *Function) Entry() *BasicBlock    { return f.blocks[0] }
func (f *Function) Exit() *BasicBlock     { return f.blocks[len(f.blocks)-1] }

func (f *Function) literals() *LiteralMap { return f.factory.literals }

// Literals exposes the owning Factory's LiteralMap, for passes outside
// package lir (transform.Clean, transform.PreparePhiInversion) that
// need to mint or inspect a block/function-reference literal without
// going through an Editor.
func (f *Function) Literals() *LiteralMap { return f.factory.literals }

// NewVirtualRegister allocates a fresh virtual-register id, monotonic
// within this function (spec.md §5).
func (f *Function) NewVirtualRegister(t Type, s Size) Value {
	id := f.nextVRegID
	f.nextVRegID++
	return NewVirtual(t, s, uint32(id))
}

func (f *Function) nextInstructionID() int {
	f.nextInstrID++
	return f.nextInstrID
}

// insertBlockBefore splices a freshly allocated block immediately
// before ref in block order and returns it. Used both by
// Factory.NewFunction (to seed entry/exit) and by Editor.NewBasicBlock
// (spec.md §4.1) to keep the exit block last.
func (f *Function) insertBlockBefore(ref *BasicBlock) *BasicBlock {
	f.nextBlockID++
	b := &BasicBlock{fn: f, id: f.nextBlockID}
	if ref == nil {
		f.blocks = append(f.blocks, b)
		return b
	}
	idx := f.blockIndex(ref)
	f.blocks = append(f.blocks, nil)
	copy(f.blocks[idx+1:], f.blocks[idx:])
	f.blocks[idx] = b
	return b
}

func (f *Function) blockIndex(b *BasicBlock) int {
	for i, other := range f.blocks {
		if other == b {
			return i
		}
	}
	panic("lir: block does not belong to this function")
}

// PredecessorMap computes every block's predecessor set in one O(E)
// sweep instead of BasicBlock.Predecessors' O(V) per-call scan. Passes
// that need predecessors for more than one block (Validator, Clean,
// PreparePhiInversion) call this once at the start of their run.
func (f *Function) PredecessorMap() map[*BasicBlock][]*BasicBlock {
	preds := make(map[*BasicBlock][]*BasicBlock, len(f.blocks))
	for _, b := range f.blocks {
		for _, succ := range b.Successors() {
			preds[succ] = append(preds[succ], b)
		}
	}
	return preds
}

// PostOrder returns the function's blocks in post-order starting from
// entry, following successors. Unreachable blocks (a validation
// failure on their own, per spec.md §8.1) are omitted. Used by the
// Clean pass (spec.md §4.4, "iterates to fixpoint over the post-order
// list") and by the code emitter to choose a layout order.
func (f *Function) PostOrder() []*BasicBlock {
	visited := make(map[*BasicBlock]bool, len(f.blocks))
	var order []*BasicBlock
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, succ := range b.Successors() {
			visit(succ)
		}
		order = append(order, b)
	}
	visit(f.Entry())
	return order
}

// ReversePostOrder returns blocks in reverse post-order (a valid
// layout order: every block appears after at least one predecessor,
// except entry) — what the code emitter (lir/x64) actually lays blocks
// out in.
func (f *Function) ReversePostOrder() []*BasicBlock {
	post := f.PostOrder()
	rev := make([]*BasicBlock, len(post))
	for i, b := range post {
		rev[len(post)-1-i] = b
	}
	return rev
}
