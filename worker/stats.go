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

package worker

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/SnellerInc/zoo/circuit"
	"github.com/SnellerInc/zoo/tt"
)

// Stats summarizes a zoo at the end of a run.
type Stats struct {
	N     int
	Found uint64
	// Sizes and Depths count recorded functions per
	// circuit size and depth.
	Sizes  map[int]int
	Depths map[int]int
	// MeanSize is the mean recorded size.
	MeanSize float64
}

// Stats walks the index and tallies the size and depth
// distributions.
func (w *Worker) Stats() *Stats {
	s := &Stats{
		N:      w.conf.N,
		Sizes:  make(map[int]int),
		Depths: make(map[int]int),
	}
	totalSize := 0
	w.zoo.ForEach(func(_ tt.Table, info *circuit.Info) bool {
		s.Found++
		s.Sizes[info.Size]++
		s.Depths[info.Depth]++
		totalSize += info.Size
		return true
	})
	if s.Found > 0 {
		s.MeanSize = float64(totalSize) / float64(s.Found)
	}
	return s
}

// String renders the end-of-run report.
func (s *Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== statistics for n=%d ===\n", s.N)
	fmt.Fprintf(&b, "functions found: %d\n", s.Found)
	fmt.Fprintf(&b, "size distribution:\n")
	sizes := maps.Keys(s.Sizes)
	slices.Sort(sizes)
	for _, sz := range sizes {
		count := s.Sizes[sz]
		fmt.Fprintf(&b, "  size %2d: %8d (%5.2f%%)\n",
			sz, count, 100*float64(count)/float64(s.Found))
	}
	fmt.Fprintf(&b, "depth distribution:\n")
	depths := maps.Keys(s.Depths)
	slices.Sort(depths)
	for _, d := range depths {
		count := s.Depths[d]
		fmt.Fprintf(&b, "  depth %2d: %7d (%5.2f%%)\n",
			d, count, 100*float64(count)/float64(s.Found))
	}
	fmt.Fprintf(&b, "mean size: %.3f", s.MeanSize)
	return b.String()
}
