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

// Package synth implements the size-indexed synthesis step:
// all circuits of gate count s are built by combining pairs
// of functions whose sizes sum to s-1 with a single AND or
// OR gate.
package synth

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SnellerInc/zoo/circuit"
	"github.com/SnellerInc/zoo/tt"
	"github.com/SnellerInc/zoo/zoo"
)

// chunk is the number of outer-list entries handed to one
// pool task. Large enough to amortize scheduling, small
// enough to keep the pool busy on skewed size lists.
const chunk = 64

// SearchSize enumerates every AND/OR composition with total
// gate count size over the sealed lists in z and claims the
// results. It returns the truth tables claimed here, in the
// order they will be sealed as the size-s list; the caller
// seals them. threads bounds the worker pool; values < 1
// mean GOMAXPROCS.
//
// All claims issued here are visible through z once
// SearchSize returns.
func SearchSize(z *zoo.Zoo, size, threads int) []tt.Table {
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	var (
		mu      sync.Mutex
		claimed []tt.Table
	)
	var g errgroup.Group
	g.SetLimit(threads)
	for s1 := size - 1; s1 >= 0; s1-- {
		s2 := size - 1 - s1
		if s2 > s1 {
			break
		}
		list1 := z.AtSize(s1)
		list2 := z.AtSize(s2)
		same := s1 == s2
		for lo := 0; lo < len(list1); lo += chunk {
			hi := lo + chunk
			if hi > len(list1) {
				hi = len(list1)
			}
			lo, hi := lo, hi
			g.Go(func() error {
				local := combine(z, size, list1[lo:hi], list2, lo, same)
				if len(local) > 0 {
					mu.Lock()
					claimed = append(claimed, local...)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	// the tasks never fail; Wait is just the barrier
	g.Wait()
	return claimed
}

// combine runs the inner enumeration for one slice of the
// outer list. base is the offset of outer within the full
// size-s1 list; when both operand sizes are equal the inner
// iteration starts at the outer index so unordered pairs
// are visited once.
func combine(z *zoo.Zoo, size int, outer, list2 []tt.Table, base int, same bool) []tt.Table {
	var local []tt.Table
	for i := range outer {
		t1 := outer[i]
		d1 := z.Depth(t1)
		start := 0
		if same {
			start = base + i
		}
		for _, t2 := range list2[start:] {
			depth := 1 + max(d1, z.Depth(t2))
			and := t1.And(t2)
			if z.TryClaim(and, size, depth, circuit.Gate(circuit.OpAnd, t1, t2)) {
				local = append(local, and)
			}
			or := t1.Or(t2)
			if z.TryClaim(or, size, depth, circuit.Gate(circuit.OpOr, t1, t2)) {
				local = append(local, or)
			}
		}
	}
	return local
}
