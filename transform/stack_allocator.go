// Package transform implements the target-agnostic CFG and frame
// passes: the Clean pass (spec.md §4.4), the phi-inversion-prep pass
// (spec.md §4.1's critical-edge handling) and the stack allocator
// (spec.md §4.5). None of these need an ISA beyond the lir.Target
// interface's pointer-size question, so none of them live in lir/x64;
// transform imports only lir, and lir/x64 does not import transform.
package transform

import "lirc/lir"

// StackAllocator assigns spill slots for one function, tracking the
// frame's peak variable-area usage and the largest outgoing-argument
// footprint seen across its call sites, exactly as spec.md §4.5
// describes. It is not reentrant across functions — one instance per
// function, matching spec.md §5's single-owner-per-function model.
type StackAllocator struct {
	target lir.Target

	freeList map[uint32][]uint32 // byte size -> available offsets
	frontier uint32              // next never-used byte offset

	maxVariables uint32
	maxArguments uint32
}

func NewStackAllocator(target lir.Target) *StackAllocator {
	return &StackAllocator{target: target, freeList: make(map[uint32][]uint32)}
}

func alignUp(n, alignment uint32) uint32 {
	if alignment == 0 {
		return n
	}
	return (n + alignment - 1) / alignment * alignment
}

// Allocate returns a fresh spill-slot Value for reg at the next
// aligned offset, reusing a freed slot of the same size first.
// Alignment is the element size capped at the target's pointer size,
// per spec.md §4.5.
func (a *StackAllocator) Allocate(reg lir.Value) lir.Value {
	size := reg.Size().Bytes()
	alignment := size
	if ptrBytes := a.target.PointerSizeInByte(); alignment > ptrBytes {
		alignment = ptrBytes
	}

	if offsets := a.freeList[size]; len(offsets) > 0 {
		offset := offsets[len(offsets)-1]
		a.freeList[size] = offsets[:len(offsets)-1]
		return lir.NewSpillSlot(reg.Type(), reg.Size(), offset)
	}

	offset := alignUp(a.frontier, alignment)
	a.frontier = offset + size
	if a.frontier > a.maxVariables {
		a.maxVariables = a.frontier
	}
	return lir.NewSpillSlot(reg.Type(), reg.Size(), offset)
}

// Free returns slot's offset to the free list, keyed by size, so a
// later Allocate of the same size can reuse it.
func (a *StackAllocator) Free(slot lir.Value) {
	size := slot.Size().Bytes()
	a.freeList[size] = append(a.freeList[size], slot.UData())
}

// MaxVariablesSize is the frame's local-area size: the high-water mark
// of variable allocations ever outstanding at once.
func (a *StackAllocator) MaxVariablesSize() uint32 { return a.maxVariables }

// MaxArgumentsSize is the reserved call area: the greatest
// outgoing-argument footprint observed across every call site tracked
// so far via TrackCall.
func (a *StackAllocator) MaxArgumentsSize() uint32 { return a.maxArguments }

// TrackCall scans call's argument-kind operands (the stack-passed
// arguments recorded on the instruction by the translator, see
// lir.NewCall) and grows the maximum-arguments counter to cover their
// byte footprint, per spec.md §4.5. Register-passed arguments
// contribute nothing: they need no stack space.
func (a *StackAllocator) TrackCall(call *lir.Instruction) {
	var total uint32
	for i := 0; i < call.NumInputs(); i++ {
		in := call.Input(i)
		if in.Kind() != lir.KindStackSlot && in.Kind() != lir.KindArgument {
			continue
		}
		sz := in.Size().Bytes()
		if ptrBytes := a.target.PointerSizeInByte(); sz < ptrBytes {
			sz = ptrBytes
		}
		end := in.UData() + sz
		if end > total {
			total = end
		}
	}
	if total > a.maxArguments {
		a.maxArguments = total
	}
}
