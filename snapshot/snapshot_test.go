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

package snapshot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/SnellerInc/zoo/circuit"
	"github.com/SnellerInc/zoo/synth"
	"github.com/SnellerInc/zoo/tt"
	"github.com/SnellerInc/zoo/zoo"
)

func fullZoo(t *testing.T, n, maxSize int) *zoo.Zoo {
	t.Helper()
	z := zoo.New(n, maxSize)
	z.SeedLiterals()
	for s := 1; s <= maxSize; s++ {
		z.Seal(s, synth.SearchSize(z, s, 2))
	}
	return z
}

func TestRoundTrip(t *testing.T) {
	src := fullZoo(t, 2, 4)
	var buf bytes.Buffer
	wrote, err := Write(&buf, src)
	if err != nil {
		t.Fatal(err)
	}
	if wrote != 16 {
		t.Fatalf("wrote %d records, want 16", wrote)
	}

	dst := zoo.New(2, 4)
	dst.SeedLiterals()
	added, err := Restore(bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatal(err)
	}
	if added != 12 {
		t.Fatalf("added %d records, want 12 (literals already seeded)", added)
	}
	src.ForEach(func(key tt.Table, info *circuit.Info) bool {
		got, ok := dst.Lookup(key)
		if !ok {
			t.Errorf("tt %d lost in round trip", key)
			return true
		}
		if got.Size != info.Size || got.Depth != info.Depth {
			t.Errorf("tt %d: (%d,%d) -> (%d,%d)",
				key, info.Size, info.Depth, got.Size, got.Depth)
		}
		return true
	})
}

func TestRestoreNeverDowngrades(t *testing.T) {
	// a snapshot carrying a worse witness for 8 than the
	// target zoo already has
	src := zoo.New(2, 4)
	src.SeedLiterals()
	src.TryClaim(8, 2, 2, circuit.Gate(circuit.OpAnd, 8, 10))
	var buf bytes.Buffer
	if _, err := Write(&buf, src); err != nil {
		t.Fatal(err)
	}

	dst := zoo.New(2, 4)
	dst.SeedLiterals()
	dst.TryClaim(8, 1, 1, circuit.Gate(circuit.OpAnd, 10, 12))
	if _, err := Restore(bytes.NewReader(buf.Bytes()), dst); err != nil {
		t.Fatal(err)
	}
	info, _ := dst.Lookup(8)
	if info.Size != 1 || info.Depth != 1 {
		t.Fatalf("restore downgraded tt 8 to (%d,%d)", info.Size, info.Depth)
	}

	// and the other way around, the snapshot wins
	worse := zoo.New(2, 4)
	worse.SeedLiterals()
	worse.TryClaim(8, 3, 3, circuit.Gate(circuit.OpAnd, 8, 10))
	if _, err := Restore(bytes.NewReader(buf.Bytes()), worse); err != nil {
		t.Fatal(err)
	}
	info, _ = worse.Lookup(8)
	if info.Size != 2 || info.Depth != 2 {
		t.Fatalf("better snapshot record ignored: (%d,%d)", info.Size, info.Depth)
	}
}

func TestChecksum(t *testing.T) {
	src := fullZoo(t, 2, 4)
	var buf bytes.Buffer
	if _, err := Write(&buf, src); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	data[len(data)-1] ^= 0x40
	dst := zoo.New(2, 4)
	_, err := Restore(bytes.NewReader(data), dst)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("tampered snapshot: %v, want ErrCorrupt", err)
	}
}

func TestBadFormat(t *testing.T) {
	dst := zoo.New(2, 4)
	if _, err := Restore(bytes.NewReader([]byte("not a snapshot")), dst); !errors.Is(err, ErrFormat) {
		t.Fatalf("garbage input: %v", err)
	}

	// right container, wrong n
	src := fullZoo(t, 2, 4)
	var buf bytes.Buffer
	if _, err := Write(&buf, src); err != nil {
		t.Fatal(err)
	}
	other := zoo.New(3, 4)
	if _, err := Restore(bytes.NewReader(buf.Bytes()), other); !errors.Is(err, ErrFormat) {
		t.Fatalf("n mismatch: %v", err)
	}
}
