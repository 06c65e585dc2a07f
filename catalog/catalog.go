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

// Package catalog is the client for the shared store
// through which workers converge.
//
// The store keeps at most one record per (truth table, n),
// the best one seen by any worker, where "best" means the
// lexicographically smallest (size, depth). That upsert
// contract is what lets concurrently running workers race
// freely: the store keeps whichever claim is better and
// discards the rest.
package catalog

import (
	"context"
	"io"

	"github.com/SnellerInc/zoo/circuit"
	"github.com/SnellerInc/zoo/tt"
)

// Record is one stored function: the truth table key, its
// best-known size and depth, the witness circuit, and the
// id of the worker that pushed it.
type Record struct {
	TT       tt.Table
	N        int
	Size     int
	Depth    int
	Circuit  circuit.Node
	WorkerID string
}

// Store is the catalog interface the worker drives.
// Implementations must tolerate concurrent readers and
// writers from other workers; LoadAll may or may not
// observe writes that are in flight elsewhere.
type Store interface {
	// LoadAll streams every record stored for n-variable
	// functions to fn in unspecified order. A non-nil
	// error from fn aborts the scan.
	LoadAll(ctx context.Context, n int, fn func(*Record) error) error
	// Upsert stores rec if absent, or replaces the stored
	// record if rec's (size, depth) lexicographically
	// precedes it. It reports whether the store was
	// modified.
	Upsert(ctx context.Context, rec *Record) (bool, error)
	io.Closer
}
