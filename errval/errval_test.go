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

package errval

import (
	"testing"

	"github.com/ren-lang/core/symbol"
)

func TestZeroDivideID(t *testing.T) {
	e := ZeroDivide()
	if e.ID != "zero-divide" {
		t.Fatalf("expected id zero-divide, got %s", e.ID)
	}
}

func TestToContextRoundTrip(t *testing.T) {
	tbl := symbol.New()
	e := New(CategoryUser, "user", "boom: %d", 7).WithNear("1 / 0", "test.reb", 12)
	ctx := e.ToContext(tbl)
	if ctx.Len() != 8 { // self + 7 fields
		t.Fatalf("expected 8 slots, got %d", ctx.Len())
	}
	idIdx, ok := ctx.Find(tbl.InternString("id"))
	if !ok {
		t.Fatalf("expected to find 'id' key")
	}
	v, _ := ctx.Var(idIdx)
	if v.Symbol() != tbl.InternString("user") {
		t.Fatalf("expected id symbol to round-trip")
	}
	lineIdx, _ := ctx.Find(tbl.InternString("line"))
	lv, _ := ctx.Var(lineIdx)
	if lv.Int() != 12 {
		t.Fatalf("expected line 12, got %d", lv.Int())
	}
}
