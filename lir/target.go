package lir

// Target is the ISA-specific descriptor interface consumed by the
// Factory, the Translator and transform.StackAllocator (spec.md §6.3).
// It is declared in this package — rather than alongside its x64
// implementation in lir/x64 — so that none of those three need to
// import an ISA-specific package to do their job; only the thing that
// picks a concrete ISA (the CLI, or a test) imports lir/x64.
type Target interface {
	// AllocatableFloatRegisters and AllocatableGeneralRegisters return
	// the registers available to whatever register allocator sits
	// downstream of this backend (out of scope here, but the
	// descriptor still needs to answer the question).
	AllocatableFloatRegisters() []Value
	AllocatableGeneralRegisters() []Value

	// RegisterOf returns the canonical Value for a named ISA register,
	// e.g. "RAX", "XMM0".
	RegisterOf(name string) Value

	// ParameterAt and ArgumentAt map a parameter/argument index of a
	// given Type to the register or stack-slot Value the calling
	// convention assigns it.
	ParameterAt(t Type, size Size, index int) Value
	ArgumentAt(t Type, size Size, index int) Value

	// ReturnOf returns the return-value register for a given (type,
	// size), selecting among EAX/RAX/XMM0S/XMM0D the way spec.md §4.2
	// describes for "get-data after a call".
	ReturnOf(t Type, size Size) Value

	IsCalleeSaved(reg Value) bool
	IsCallerSaved(reg Value) bool
	IsParameterRegister(reg Value) bool

	// HasCopyImmediateToMemory and HasSwapInstruction are capability
	// bits consumed by the (out-of-scope) parallel-copy expander.
	HasCopyImmediateToMemory(t Type) bool
	HasSwapInstruction(t Type) bool

	PointerSize() Size
	PointerSizeInByte() uint32

	// ShiftCountRegister returns the fixed register (CL/RCX, sized to
	// the shifted value) the x64 lowering pass pins non-immediate
	// shift counts to (spec.md §4.3).
	ShiftCountRegister(shiftedSize Size) Value

	// DivideRegisters returns the fixed dividend-low and dividend-high
	// registers used by the signed/unsigned divide lowering (spec.md
	// §4.3), sized to size; the divide leaves its quotient in low and
	// its remainder in high.
	DivideRegisters(size Size) (low, high Value)
}
