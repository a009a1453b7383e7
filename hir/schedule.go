package hir

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Schedule is a single function's worth of scheduled HIR nodes — the
// entire HIR-side contract the translator consumes (spec.md §6.1):
// "(a) every node appears after all its input nodes; (b) every
// block-start node appears before every node whose block it starts;
// (c) block-end nodes close their block."
type Schedule struct {
	Name   string
	Params []Type
	Nodes  []Node

	index map[int]Node // lazily built by NodeByID
}

// NodeByID looks up a node by id, or reports ok=false. Node ids need
// not equal their index in Nodes (a real scheduler may reuse an
// upstream numbering), so lookups always go through this index rather
// than assuming Nodes[i].ID == i.
func (s *Schedule) NodeByID(id int) (Node, bool) {
	if s.index == nil {
		s.buildIndex()
	}
	n, ok := s.index[id]
	return n, ok
}

func (s *Schedule) buildIndex() {
	s.index = make(map[int]Node, len(s.Nodes))
	for _, n := range s.Nodes {
		s.index[n.ID] = n
	}
}

// Validate checks the ordering contract of spec.md §6.1 structurally
// — every input id must reference a node seen anywhere in the
// schedule and (except for a phi's inputs) one already seen, and every
// Targets/PhiPreds id must reference a node seen anywhere in the
// schedule. It does not (cannot, without walking the translator's own
// block-mapping pass) check the block-start/block-end closure rule;
// that surfaces instead as a translate.Translator diagnostic.
func (s *Schedule) Validate() error {
	seen := make(map[int]bool, len(s.Nodes))
	allIDs := make(map[int]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		allIDs[n.ID] = true
	}
	for _, n := range s.Nodes {
		for _, in := range n.Inputs {
			if !allIDs[in] {
				return errors.Errorf("hir: node %d (%s) uses unknown input %d", n.ID, n.Kind, in)
			}
			// A phi's inputs may legitimately name a node that is
			// scheduled later than the phi itself (a loop back-edge
			// value); translate.Translator's final fixup pass exists
			// precisely to resolve those, so this check only applies
			// to every other node kind.
			if n.Kind != KindPhi && !seen[in] {
				return errors.Errorf("hir: node %d (%s) uses input %d before it is scheduled", n.ID, n.Kind, in)
			}
		}
		for _, t := range n.Targets {
			if !allIDs[t] {
				return errors.Errorf("hir: node %d (%s) targets unknown node %d", n.ID, n.Kind, t)
			}
		}
		for _, p := range n.PhiPreds {
			if !allIDs[p] {
				return errors.Errorf("hir: node %d (%s) names unknown phi predecessor %d", n.ID, n.Kind, p)
			}
		}
		seen[n.ID] = true
	}
	return nil
}

// wireSchedule is the on-disk JSON shape documented here per
// SPEC_FULL.md §16: cmd/lirc's `dump-lir` and `build` subcommands read
// this format in lieu of a real lexer/parser/scheduler front end,
// which are out of scope (spec.md §1). It mirrors Schedule/Node
// field-for-field; kept as a separate type so the in-memory Node can
// gain non-serializable bookkeeping later without breaking the wire
// shape.
type wireSchedule struct {
	Name   string `json:"name"`
	Params []Type `json:"params"`
	Nodes  []Node `json:"nodes"`
}

// DecodeSchedule reads the JSON schedule format from r.
func DecodeSchedule(r io.Reader) (*Schedule, error) {
	var w wireSchedule
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Schedule{Name: w.Name, Params: w.Params, Nodes: w.Nodes}, nil
}

// EncodeSchedule writes s in the JSON schedule format to w.
func EncodeSchedule(w io.Writer, s *Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	wire := wireSchedule{Name: s.Name, Params: s.Params, Nodes: s.Nodes}
	if err := enc.Encode(wire); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
