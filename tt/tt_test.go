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

package tt

import (
	"math"
	"testing"
)

func TestLiteral(t *testing.T) {
	cases := []struct {
		v    int
		neg  bool
		n    int
		want Table
	}{
		{0, false, 2, 0b1010},
		{1, false, 2, 0b1100},
		{0, true, 2, 0b0101},
		{1, true, 2, 0b0011},
		{0, false, 1, 0b10},
		{0, true, 1, 0b01},
		{2, false, 3, 0xf0},
		{2, true, 3, 0x0f},
	}
	for i := range cases {
		c := &cases[i]
		got := Literal(c.v, c.neg, c.n)
		if got != c.want {
			t.Errorf("Literal(%d, %v, %d) = %s, want %s",
				c.v, c.neg, c.n, got.Bits(c.n), c.want.Bits(c.n))
		}
		if !got.Valid(c.n) {
			t.Errorf("Literal(%d, %v, %d) has high bits set", c.v, c.neg, c.n)
		}
	}
}

func TestGates(t *testing.T) {
	// the n=2 size-1 synthesis table from the four literals:
	x := Literal(0, false, 2)  // 10
	y := Literal(1, false, 2)  // 12
	nx := Literal(0, true, 2)  // 5
	ny := Literal(1, true, 2)  // 3
	ands := []struct {
		a, b, want Table
	}{
		{x, y, 8},
		{x, nx, 0},
		{x, ny, 2},
		{y, nx, 4},
		{y, ny, 0},
		{nx, ny, 1},
	}
	for _, c := range ands {
		if got := c.a.And(c.b); got != c.want {
			t.Errorf("%d AND %d = %d, want %d", c.a, c.b, got, c.want)
		}
	}
	ors := []struct {
		a, b, want Table
	}{
		{x, y, 14},
		{x, nx, 15},
		{x, ny, 11},
		{y, nx, 13},
		{nx, ny, 7},
	}
	for _, c := range ors {
		if got := c.a.Or(c.b); got != c.want {
			t.Errorf("%d OR %d = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestNumFuncs(t *testing.T) {
	if got := NumFuncs(1); got != 4 {
		t.Errorf("NumFuncs(1) = %d", got)
	}
	if got := NumFuncs(2); got != 16 {
		t.Errorf("NumFuncs(2) = %d", got)
	}
	if got := NumFuncs(4); got != 65536 {
		t.Errorf("NumFuncs(4) = %d", got)
	}
	// 2^64 saturates
	if got := NumFuncs(6); got != math.MaxUint64 {
		t.Errorf("NumFuncs(6) = %d", got)
	}
}

func TestMaskValid(t *testing.T) {
	if Mask(2) != 0xf || Mask(3) != 0xff || Mask(6) != ^Table(0) {
		t.Fatal("bad masks")
	}
	if !Table(0xf).Valid(2) {
		t.Error("0xf should be valid for n=2")
	}
	if Table(0x10).Valid(2) {
		t.Error("0x10 should not be valid for n=2")
	}
}

func TestCheckVars(t *testing.T) {
	for n := 1; n <= MaxVars; n++ {
		if err := CheckVars(n); err != nil {
			t.Errorf("CheckVars(%d): %s", n, err)
		}
	}
	if CheckVars(0) == nil || CheckVars(7) == nil {
		t.Error("expected out-of-range error")
	}
}

func TestBits(t *testing.T) {
	x := Literal(0, false, 2)
	if s := x.Bits(2); s != "1010" {
		t.Errorf("Bits = %q", s)
	}
}
