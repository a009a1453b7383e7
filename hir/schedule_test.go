package hir_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"lirc/hir"
	"lirc/internal/testfixture"
)

func TestValidateAcceptsEveryFixture(t *testing.T) {
	builders := map[string]func() *hir.Schedule{
		"identity":      testfixture.Identity,
		"add_two":       testfixture.AddTwo,
		"max":           testfixture.Max,
		"sum_to":        testfixture.SumTo,
		"critical_edge": testfixture.CriticalEdge,
		"call_square":   testfixture.CallSquare,
		"element_at":    testfixture.ElementAt,
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, build().Validate())
		})
	}
}

func TestValidateRejectsUseBeforeSchedule(t *testing.T) {
	s := &hir.Schedule{
		Name: "bad",
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			// node 2's add reads node 1 before node 1 is scheduled.
			{ID: 2, Kind: hir.KindAdd, Inputs: []int{1, 1}},
			{ID: 1, Kind: hir.KindLiteralInt, IntValue: 5},
			{ID: 3, Kind: hir.KindRet, Inputs: []int{2}},
		},
	}
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "before it is scheduled")
}

func TestValidateRejectsUnknownInput(t *testing.T) {
	s := &hir.Schedule{
		Name: "bad",
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindRet, Inputs: []int{99}},
		},
	}
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown input")
}

func TestValidateRejectsUnknownTarget(t *testing.T) {
	s := &hir.Schedule{
		Name: "bad",
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindJump, Targets: []int{42}},
		},
	}
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "targets unknown node")
}

// TestValidateExemptsPhiFromOrderingCheck is the phi-exemption design
// decision: a phi may legally name an input (a loop back-edge value)
// that is scheduled later than the phi itself.
func TestValidateExemptsPhiFromOrderingCheck(t *testing.T) {
	s := &hir.Schedule{
		Name: "loopy",
		Nodes: []hir.Node{
			{ID: 0, Kind: hir.KindEntry},
			{ID: 1, Kind: hir.KindLiteralInt, IntValue: 0},
			{ID: 2, Kind: hir.KindJump, Targets: []int{10}},
			{ID: 10, Kind: hir.KindLoop},
			// phi reads node 20, which is only scheduled below.
			{ID: 11, Kind: hir.KindPhi, Inputs: []int{1, 20}, PhiPreds: []int{0, 10}},
			{ID: 12, Kind: hir.KindRet, Inputs: []int{11}},
			{ID: 20, Kind: hir.KindAdd, Inputs: []int{11, 1}},
		},
	}
	require.NoError(t, s.Validate())
}

func TestNodeByIDLooksUpByIDNotIndex(t *testing.T) {
	s := &hir.Schedule{
		Nodes: []hir.Node{
			{ID: 7, Kind: hir.KindEntry},
			{ID: 3, Kind: hir.KindRet},
		},
	}
	n, ok := s.NodeByID(3)
	require.True(t, ok)
	require.Equal(t, hir.KindRet, n.Kind)

	_, ok = s.NodeByID(1)
	require.False(t, ok)
}

func TestEncodeDecodeScheduleRoundTrips(t *testing.T) {
	original := testfixture.AddTwo()

	var buf bytes.Buffer
	require.NoError(t, hir.EncodeSchedule(&buf, original))

	decoded, err := hir.DecodeSchedule(&buf)
	require.NoError(t, err)

	require.Equal(t, original.Name, decoded.Name)
	require.Equal(t, original.Params, decoded.Params)
	require.Equal(t, original.Nodes, decoded.Nodes)
}
