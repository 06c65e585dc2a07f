// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package circuit defines the witness representation
// recorded for each discovered Boolean function and its
// wire encoding.
//
// Gate nodes reference their children by truth-table
// value rather than by pointer, so a node is meaningful
// in any process that can look the children up in its
// own index. The JSON encoding is shared between workers
// through the catalog and must not change shape.
package circuit

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SnellerInc/zoo/tt"
)

// Op discriminates the node variants.
type Op uint8

const (
	// OpLit is an input literal, possibly negated.
	OpLit Op = iota
	// OpAnd is a binary AND gate.
	OpAnd
	// OpOr is a binary OR gate.
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpLit:
		return "lit"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Node is one circuit node. For OpLit, Var and Neg
// identify the literal; for OpAnd and OpOr, Left and
// Right are the truth tables of the child functions.
type Node struct {
	Op          Op
	Var         int
	Neg         bool
	Left, Right tt.Table
}

// Lit constructs a literal node.
func Lit(v int, neg bool) Node {
	return Node{Op: OpLit, Var: v, Neg: neg}
}

// Gate constructs an AND or OR node over the child
// truth tables left and right.
func Gate(op Op, left, right tt.Table) Node {
	return Node{Op: op, Left: left, Right: right}
}

// Info is the best-known witness for one truth table.
// Size is the minimum gate count at which the function
// was first claimed; Depth is the depth of the recorded
// circuit. Literals have Size == 0 and Depth == 0.
type Info struct {
	Size  int
	Depth int
	Node  Node
}

// Before reports whether (i.Size, i.Depth) lexicographically
// precedes (o.Size, o.Depth). This ordering is the contract
// the catalog upsert uses to resolve races between workers.
func (i *Info) Before(o *Info) bool {
	return i.Size < o.Size || (i.Size == o.Size && i.Depth < o.Depth)
}

type litJSON struct {
	Type string `json:"type"`
	Var  int    `json:"var"`
	Neg  bool   `json:"neg"`
}

type gateJSON struct {
	Type  string `json:"type"`
	Left  uint64 `json:"left"`
	Right uint64 `json:"right"`
}

// MarshalJSON encodes n in the wire format, e.g.
//
//	{"type":"lit","var":0,"neg":false}
//	{"type":"and","left":10,"right":12}
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Op {
	case OpLit:
		return json.Marshal(litJSON{Type: "lit", Var: n.Var, Neg: n.Neg})
	case OpAnd, OpOr:
		return json.Marshal(gateJSON{
			Type:  n.Op.String(),
			Left:  uint64(n.Left),
			Right: uint64(n.Right),
		})
	}
	return nil, fmt.Errorf("marshal: unknown node op %d", int(n.Op))
}

// UnmarshalJSON decodes the wire format; an unknown
// "type" value is an error.
func (n *Node) UnmarshalJSON(b []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	switch head.Type {
	case "lit":
		var l litJSON
		if err := json.Unmarshal(b, &l); err != nil {
			return err
		}
		*n = Lit(l.Var, l.Neg)
	case "and", "or":
		var g gateJSON
		if err := json.Unmarshal(b, &g); err != nil {
			return err
		}
		op := OpAnd
		if head.Type == "or" {
			op = OpOr
		}
		*n = Gate(op, tt.Table(g.Left), tt.Table(g.Right))
	default:
		return fmt.Errorf("unmarshal: unknown node type %q", head.Type)
	}
	return nil
}

// ErrUnresolved is returned by Eval when a child truth
// table cannot be resolved through the lookup.
var ErrUnresolved = errors.New("unresolved child truth table")

// ErrCyclic is returned by Eval when the witnesses under
// evaluation reference each other; well-formed discovery
// DAGs are strictly size-decreasing, so a cycle means the
// data is corrupt.
var ErrCyclic = errors.New("cyclic circuit reference")

// Eval reconstructs the function computed by n over nvars
// variables, resolving children through lookup. It is used
// to validate witnesses against their claimed truth tables;
// the search itself never needs it.
func Eval(n Node, nvars int, lookup func(tt.Table) (Node, bool)) (tt.Table, error) {
	memo := make(map[tt.Table]tt.Table)
	busy := make(map[tt.Table]bool)
	var child func(t tt.Table) (tt.Table, error)
	eval := func(n Node) (tt.Table, error) {
		if n.Op == OpLit {
			return tt.Literal(n.Var, n.Neg, nvars), nil
		}
		l, err := child(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := child(n.Right)
		if err != nil {
			return 0, err
		}
		if n.Op == OpAnd {
			return l.And(r), nil
		}
		return l.Or(r), nil
	}
	child = func(t tt.Table) (tt.Table, error) {
		if v, ok := memo[t]; ok {
			return v, nil
		}
		if busy[t] {
			return 0, fmt.Errorf("%w: %d", ErrCyclic, t)
		}
		cn, ok := lookup(t)
		if !ok {
			return 0, fmt.Errorf("%w: %d", ErrUnresolved, t)
		}
		busy[t] = true
		v, err := eval(cn)
		delete(busy, t)
		if err != nil {
			return 0, err
		}
		memo[t] = v
		return v, nil
	}
	return eval(n)
}
