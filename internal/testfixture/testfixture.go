// Package testfixture hand-builds hir.Schedule values for tests, in
// lieu of the lexer/parser/scheduler this repository never implements
// (spec.md §1). It plays the role the teacher's vm_test.go
// compileAndCheckSource/compileAndCheck helpers play — a small, fixed
// set of named programs every package's tests can reuse — except
// there is no source text to compile, so each builder constructs the
// already-scheduled node list directly.
package testfixture

import "lirc/hir"

func i32() hir.Type { return hir.Type{Kind: hir.TypeInt32} }
func i64() hir.Type { return hir.Type{Kind: hir.TypeInt64} }
func ptr() hir.Type { return hir.Type{Kind: hir.TypePointer} }

// Identity returns a schedule for `int32 f(int32 a) { return a; }`.
func Identity() *hir.Schedule {
	return &hir.Schedule{
		Name:   "identity",
		Params: []hir.Type{i32()},
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindParameter, Type: i32(), IntValue: 0},
			{ID: 2, Kind: hir.KindRet, Inputs: []int{1}},
		},
	}
}

// AddTwo returns a schedule for `int32 f(int32 a, int32 b) { return a
// + b; }`.
func AddTwo() *hir.Schedule {
	return &hir.Schedule{
		Name:   "add_two",
		Params: []hir.Type{i32(), i32()},
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindParameter, Type: i32(), IntValue: 0},
			{ID: 2, Kind: hir.KindParameter, Type: i32(), IntValue: 1},
			{ID: 3, Kind: hir.KindAdd, Type: i32(), Inputs: []int{1, 2}},
			{ID: 4, Kind: hir.KindRet, Inputs: []int{3}},
		},
	}
}

// Max returns a schedule for the classic branch/phi diamond:
//
//	int32 f(int32 a, int32 b) {
//	    if (a > b) return a; else return b;  // expressed as one join, one ret
//	}
func Max() *hir.Schedule {
	return &hir.Schedule{
		Name:   "max",
		Params: []hir.Type{i32(), i32()},
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindParameter, Type: i32(), IntValue: 0},
			{ID: 2, Kind: hir.KindParameter, Type: i32(), IntValue: 1},
			{ID: 3, Kind: hir.KindIntCmp, Inputs: []int{1, 2}, CmpOp: "gt"},
			{ID: 4, Kind: hir.KindBranch, Inputs: []int{3}, Targets: []int{10, 20}},

			{ID: 10, Kind: hir.KindMerge},
			{ID: 11, Kind: hir.KindJump, Targets: []int{30}},

			{ID: 20, Kind: hir.KindMerge},
			{ID: 21, Kind: hir.KindJump, Targets: []int{30}},

			{ID: 30, Kind: hir.KindMerge},
			{ID: 31, Kind: hir.KindPhi, Type: i32(), Inputs: []int{1, 2}, PhiPreds: []int{10, 20}},
			{ID: 32, Kind: hir.KindRet, Inputs: []int{31}},
		},
	}
}

// SumTo returns a schedule for:
//
//	int32 f(int32 n) {
//	    int32 sum = 0, i = 0;
//	    while (i < n) { i = i + 1; sum = sum + i; }
//	    return sum;
//	}
//
// exercising a loop header's phi back-edges.
func SumTo() *hir.Schedule {
	return &hir.Schedule{
		Name:   "sum_to",
		Params: []hir.Type{i32()},
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindParameter, Type: i32(), IntValue: 0},
			{ID: 2, Kind: hir.KindLiteralInt, Type: i32(), IntValue: 0},
			{ID: 3, Kind: hir.KindLiteralInt, Type: i32(), IntValue: 0},
			{ID: 4, Kind: hir.KindJump, Targets: []int{10}},

			{ID: 10, Kind: hir.KindLoop},
			{ID: 11, Kind: hir.KindPhi, Type: i32(), Inputs: []int{2, 23}, PhiPreds: []int{0, 20}},
			{ID: 12, Kind: hir.KindPhi, Type: i32(), Inputs: []int{3, 22}, PhiPreds: []int{0, 20}},
			{ID: 13, Kind: hir.KindIntCmp, Inputs: []int{12, 1}, CmpOp: "lt"},
			{ID: 14, Kind: hir.KindBranch, Inputs: []int{13}, Targets: []int{20, 30}},

			{ID: 20, Kind: hir.KindMerge},
			{ID: 21, Kind: hir.KindLiteralInt, Type: i32(), IntValue: 1},
			{ID: 22, Kind: hir.KindAdd, Type: i32(), Inputs: []int{12, 21}},
			{ID: 23, Kind: hir.KindAdd, Type: i32(), Inputs: []int{11, 22}},
			{ID: 24, Kind: hir.KindJump, Targets: []int{10}},

			{ID: 30, Kind: hir.KindMerge},
			{ID: 31, Kind: hir.KindRet, Inputs: []int{11}},
		},
	}
}

// CriticalEdge returns a schedule whose entry block branches straight
// into a phi-bearing join block on one arm (a critical edge: entry has
// two successors, join has two predecessors) and through an
// intermediate block on the other:
//
//	int32 f(int32 a) {
//	    if (a != 0) return a;      // entry -> join directly
//	    int32 v = a + 100;
//	    return v;                  // entry -> mid -> join
//	}
func CriticalEdge() *hir.Schedule {
	return &hir.Schedule{
		Name:   "critical_edge",
		Params: []hir.Type{i32()},
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindParameter, Type: i32(), IntValue: 0},
			{ID: 4, Kind: hir.KindBranch, Inputs: []int{1}, Targets: []int{10, 20}},

			{ID: 10, Kind: hir.KindMerge},
			{ID: 11, Kind: hir.KindPhi, Type: i32(), Inputs: []int{1, 22}, PhiPreds: []int{0, 20}},
			{ID: 12, Kind: hir.KindRet, Inputs: []int{11}},

			{ID: 20, Kind: hir.KindMerge},
			{ID: 21, Kind: hir.KindLiteralInt, Type: i32(), IntValue: 100},
			{ID: 22, Kind: hir.KindAdd, Type: i32(), Inputs: []int{1, 21}},
			{ID: 24, Kind: hir.KindJump, Targets: []int{10}},
		},
	}
}

// ElementAt returns a schedule for `int32 f(int32* base, int64 idx) {
// return base[idx]; }`, a single-dimension array element access whose
// index operand is a full 64-bit value.
func ElementAt() *hir.Schedule {
	return &hir.Schedule{
		Name:   "element_at",
		Params: []hir.Type{ptr(), i64()},
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindParameter, Type: ptr(), IntValue: 0},
			{ID: 2, Kind: hir.KindParameter, Type: i64(), IntValue: 1},
			{ID: 3, Kind: hir.KindElement, Type: i32(), SizeOfType: i32(), Inputs: []int{1, 2}},
			{ID: 4, Kind: hir.KindRet, Inputs: []int{3}},
		},
	}
}

// CallSquare returns a schedule for `int32 f(int32 n) { return
// square(n); }`, a direct external call followed by a get-data read of
// its return value.
func CallSquare() *hir.Schedule {
	return &hir.Schedule{
		Name:   "call_square",
		Params: []hir.Type{i32()},
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindParameter, Type: i32(), IntValue: 0},
			{ID: 2, Kind: hir.KindCall, Type: i32(), Callee: "square", Inputs: []int{1}},
			{ID: 3, Kind: hir.KindGetData, Type: i32(), Inputs: []int{2}},
			{ID: 4, Kind: hir.KindRet, Inputs: []int{3}},
		},
	}
}
