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

// Package zoo maintains the in-memory index of best-known
// circuits: one witness per reachable truth table, together
// with the size-stratified lists the synthesizer iterates.
//
// The index is written from many goroutines at once during
// synthesis; claims are serialized per key by an atomic
// vacant-insert, and everything else is read-only while a
// size is being searched. The size lists are only mutated
// between sizes (seal, peer merge), from a single goroutine.
package zoo

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/SnellerInc/zoo/circuit"
	"github.com/SnellerInc/zoo/tt"
)

// Pending is one discovery waiting to be pushed
// to the catalog.
type Pending struct {
	TT   tt.Table
	Info *circuit.Info
}

// Zoo is the local index of discovered functions.
type Zoo struct {
	n       int
	maxSize int

	functions *xsync.MapOf[tt.Table, *circuit.Info]
	depths    *xsync.MapOf[tt.Table, int]
	found     atomic.Uint64

	// avail[s] lists the truth tables whose recorded size
	// is exactly s. Lists for sizes below the one currently
	// being searched are sealed and read concurrently by
	// the synthesizer; writes happen only between sizes.
	avail [][]tt.Table

	pendMu  sync.Mutex
	pending []Pending
}

// New returns an empty index for n-variable functions
// searched up to maxSize gates.
func New(n, maxSize int) *Zoo {
	return &Zoo{
		n:         n,
		maxSize:   maxSize,
		functions: xsync.NewMapOf[tt.Table, *circuit.Info](),
		depths:    xsync.NewMapOf[tt.Table, int](),
		avail:     make([][]tt.Table, maxSize+1),
	}
}

// Vars returns the number of input variables.
func (z *Zoo) Vars() int { return z.n }

// SeedLiterals inserts the 2n literal entries with size 0
// and depth 0. Seeding twice is a no-op.
func (z *Zoo) SeedLiterals() {
	for v := 0; v < z.n; v++ {
		for _, neg := range [2]bool{false, true} {
			t := tt.Literal(v, neg, z.n)
			info := &circuit.Info{Node: circuit.Lit(v, neg)}
			if _, loaded := z.functions.LoadOrStore(t, info); loaded {
				continue
			}
			z.depths.Store(t, 0)
			z.found.Add(1)
			z.avail[0] = append(z.avail[0], t)
		}
	}
}

// TryClaim atomically claims first-finder rights for t,
// recording it at the given size and depth with node as
// the witness. It returns true only if no prior entry
// existed and this call inserted one; a false return
// leaves the index unchanged. Successful claims are
// queued for the catalog push unless the queue lock is
// contended, in which case the enqueue is dropped: peer
// visibility is merely delayed, the local claim stands.
func (z *Zoo) TryClaim(t tt.Table, size, depth int, node circuit.Node) bool {
	// cheap pre-check; the common case is a duplicate
	if _, ok := z.functions.Load(t); ok {
		return false
	}
	info := &circuit.Info{Size: size, Depth: depth, Node: node}
	if _, loaded := z.functions.LoadOrStore(t, info); loaded {
		return false
	}
	z.depths.Store(t, depth)
	z.found.Add(1)
	if z.pendMu.TryLock() {
		z.pending = append(z.pending, Pending{TT: t, Info: info})
		z.pendMu.Unlock()
	}
	return true
}

// MergeExternal folds a catalog record into the index.
// Absent entries are inserted unconditionally; present
// entries are replaced only when the incoming (size, depth)
// pair lexicographically precedes the stored one. Records
// arriving here are already in the catalog, so nothing is
// queued for push. The return value reports whether t was
// new to this worker.
//
// MergeExternal must not run concurrently with synthesis:
// it may rewrite the sealed size lists.
func (z *Zoo) MergeExternal(t tt.Table, size, depth int, node circuit.Node) bool {
	info := &circuit.Info{Size: size, Depth: depth, Node: node}
	prev, loaded := z.functions.LoadOrStore(t, info)
	if !loaded {
		z.depths.Store(t, depth)
		z.found.Add(1)
		z.listAdd(size, t)
		return true
	}
	if info.Before(prev) {
		z.functions.Store(t, info)
		z.depths.Store(t, depth)
		if size != prev.Size {
			z.listRemove(prev.Size, t)
			z.listAdd(size, t)
		}
	}
	return false
}

func (z *Zoo) listAdd(size int, t tt.Table) {
	if size >= 0 && size <= z.maxSize {
		z.avail[size] = append(z.avail[size], t)
	}
}

func (z *Zoo) listRemove(size int, t tt.Table) {
	if size < 0 || size > z.maxSize {
		return
	}
	l := z.avail[size]
	for i := range l {
		if l[i] == t {
			z.avail[size] = append(l[:i], l[i+1:]...)
			return
		}
	}
}

// Lookup returns the recorded witness for t, if any.
func (z *Zoo) Lookup(t tt.Table) (*circuit.Info, bool) {
	return z.functions.Load(t)
}

// Depth returns the cached depth of t, or zero when t is
// unknown. Synthesis only asks for sealed operands, so the
// zero fallback is never observed there.
func (z *Zoo) Depth(t tt.Table) int {
	d, _ := z.depths.Load(t)
	return d
}

// Found returns the number of distinct truth tables in
// the index. The counter is a progress indicator updated
// with relaxed atomics, not a synchronization barrier.
func (z *Zoo) Found() uint64 { return z.found.Load() }

// AtSize returns the list of truth tables recorded at
// exactly size s. The caller must treat it as read-only.
func (z *Zoo) AtSize(s int) []tt.Table {
	if s < 0 || s > z.maxSize {
		return nil
	}
	return z.avail[s]
}

// Seal appends the truth tables claimed while searching
// size s to its list. No separate completion marker is
// kept: a size with no members is indistinguishable from
// one never searched. Called once per size from the driver.
func (z *Zoo) Seal(s int, claimed []tt.Table) {
	z.avail[s] = append(z.avail[s], claimed...)
}

// LargestSealed returns the largest s >= 1 whose list is
// nonempty, or zero when no gate-level size has members.
// The driver resumes searching just past it.
func (z *Zoo) LargestSealed() int {
	last := 0
	for s := 1; s <= z.maxSize; s++ {
		if len(z.avail[s]) > 0 {
			last = s
		}
	}
	return last
}

// ForEach visits every recorded (table, witness) pair until
// fn returns false. Iteration order is unspecified and the
// snapshot is weakly consistent, like the underlying map.
func (z *Zoo) ForEach(fn func(t tt.Table, info *circuit.Info) bool) {
	z.functions.Range(func(t tt.Table, info *circuit.Info) bool {
		return fn(t, info)
	})
}

// DrainPending removes and returns everything queued for
// the catalog push. The pusher owns the returned batch; if
// the push fails it must hand the unsent records back via
// Requeue so no claim is lost from the catalog view.
func (z *Zoo) DrainPending() []Pending {
	z.pendMu.Lock()
	batch := z.pending
	z.pending = nil
	z.pendMu.Unlock()
	return batch
}

// Requeue returns an unsent batch to the pending queue.
func (z *Zoo) Requeue(batch []Pending) {
	if len(batch) == 0 {
		return
	}
	z.pendMu.Lock()
	z.pending = append(batch, z.pending...)
	z.pendMu.Unlock()
}

// PendingLen reports the current queue length.
func (z *Zoo) PendingLen() int {
	z.pendMu.Lock()
	n := len(z.pending)
	z.pendMu.Unlock()
	return n
}
