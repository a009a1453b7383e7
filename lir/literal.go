package lir

import (
	"math"
	"unicode/utf16"
)

// LiteralKind distinguishes the contents of a literal-map entry. Only
// KindLiteral-kind Values ever carry one of these as their referent.
type LiteralKind uint8

const (
	LiteralFloat32 LiteralKind = iota
	LiteralFloat64
	LiteralInt32
	LiteralInt64
	LiteralString
	LiteralBlock
	LiteralFunction
)

// Literal is one entry in a LiteralMap. Exactly one of the payload
// fields is meaningful, selected by Kind — mirroring the teacher's
// Request.Data []byte plus Command-selects-interpretation pattern in
// devices.go rather than a Go-idiomatic sum type, because the emitter
// (lir/x64) needs to dispatch on Kind to choose which CodeBuilder
// setter to call (spec.md §4.6 pass 3) and a type switch over an
// interface would cost an allocation per literal at construction time.
type Literal struct {
	Kind     LiteralKind
	F32      float32
	F64      float64
	I32      int32
	I64      int64
	Str      string
	StrUTF16 []uint16
	Block    *BasicBlock
	Func     *Function
}

// LiteralMap interns every non-immediate constant for one compilation.
// Entries live for the lifetime of the owning Factory (spec.md §3.2
// "Lifecycle") — there is no Free; dedup tables only ever grow.
type LiteralMap struct {
	entries []Literal

	byFloat32 map[uint32]uint32 // bit pattern -> index
	byFloat64 map[uint64]uint32
	byInt     map[intKey]uint32
	byString  map[string]uint32
	byBlock   map[*BasicBlock]uint32
	byFunc    map[*Function]uint32
}

type intKey struct {
	value int64
	size  Size
}

func newLiteralMap() *LiteralMap {
	return &LiteralMap{
		byFloat32: make(map[uint32]uint32),
		byFloat64: make(map[uint64]uint32),
		byInt:     make(map[intKey]uint32),
		byString:  make(map[string]uint32),
		byBlock:   make(map[*BasicBlock]uint32),
		byFunc:    make(map[*Function]uint32),
	}
}

func (m *LiteralMap) add(l Literal) uint32 {
	idx := uint32(len(m.entries))
	m.entries = append(m.entries, l)
	return idx
}

// Get returns the literal previously interned at idx. Panics on an
// out-of-range index: this can only happen from a Value corrupted by
// code outside this package, a programmer error.
func (m *LiteralMap) Get(idx uint32) Literal {
	return m.entries[idx]
}

// Float32 interns a float32 constant, deduplicated by bit pattern so
// that +0.0 and -0.0 (and any two NaNs with identical bits) are
// distinguished but value-equal floats never duplicate an entry.
func (m *LiteralMap) Float32(v float32) Value {
	bits := math.Float32bits(v)
	idx, ok := m.byFloat32[bits]
	if !ok {
		idx = m.add(Literal{Kind: LiteralFloat32, F32: v})
		m.byFloat32[bits] = idx
	}
	return NewLiteralRef(Float, Size32, idx)
}

func (m *LiteralMap) Float64(v float64) Value {
	bits := math.Float64bits(v)
	idx, ok := m.byFloat64[bits]
	if !ok {
		idx = m.add(Literal{Kind: LiteralFloat64, F64: v})
		m.byFloat64[bits] = idx
	}
	return NewLiteralRef(Float, Size64, idx)
}

// Int interns an integer constant too wide to be an immediate,
// deduplicated by (value, size) per spec.md §3.2.
func (m *LiteralMap) Int(v int64, size Size) Value {
	key := intKey{value: v, size: size}
	idx, ok := m.byInt[key]
	if !ok {
		if size == Size64 {
			idx = m.add(Literal{Kind: LiteralInt64, I64: v})
		} else {
			idx = m.add(Literal{Kind: LiteralInt32, I32: int32(v)})
		}
		m.byInt[key] = idx
	}
	if size == Size64 {
		return NewLiteralRef(Int, Size64, idx)
	}
	return NewLiteralRef(Int, size, idx)
}

// String interns a string constant, deduplicated by content, storing
// both the original text (for diagnostics/printing) and its UTF-16
// re-encoding (for CodeBuilder.set_string, spec.md §6.2) the way
// original_source/elang/lir/literals.cc stores string literals.
func (m *LiteralMap) String(s string) Value {
	idx, ok := m.byString[s]
	if !ok {
		idx = m.add(Literal{Kind: LiteralString, Str: s, StrUTF16: utf16.Encode([]rune(s))})
		m.byString[s] = idx
	}
	return NewLiteralRef(Int, Size64, idx)
}

// Block interns a jump-target reference: one entry per *BasicBlock,
// per spec.md §3.2.
func (m *LiteralMap) Block(b *BasicBlock) Value {
	idx, ok := m.byBlock[b]
	if !ok {
		idx = m.add(Literal{Kind: LiteralBlock, Block: b})
		m.byBlock[b] = idx
	}
	return NewLiteralRef(Int, Size64, idx)
}

// Func interns a callee reference: one entry per *Function.
func (m *LiteralMap) Func(f *Function) Value {
	idx, ok := m.byFunc[f]
	if !ok {
		idx = m.add(Literal{Kind: LiteralFunction, Func: f})
		m.byFunc[f] = idx
	}
	return NewLiteralRef(Int, Size64, idx)
}

// Len reports how many literals have been interned, mostly useful in
// tests asserting dedup actually happened.
func (m *LiteralMap) Len() int { return len(m.entries) }
