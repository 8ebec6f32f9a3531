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

package unwind

import (
	"testing"

	"github.com/ren-lang/core/symbol"
	"github.com/ren-lang/core/value"
)

func TestThrownMatchesByName(t *testing.T) {
	tbl := symbol.New()
	fooSym := tbl.InternString("foo")
	name := value.Word(value.KindWord, fooSym)
	arg := value.Integer(42)
	out := Throw(name, arg)

	catcher := value.Word(value.KindWord, fooSym)
	if !out.Matches(catcher) {
		t.Fatalf("expected matching catch name to match")
	}

	other := value.Word(value.KindWord, tbl.InternString("bar"))
	if out.Matches(other) {
		t.Fatalf("expected non-matching catch name to not match")
	}

	n, a := out.Take()
	if a.Int() != 42 {
		t.Fatalf("expected thrown arg 42, got %d", a.Int())
	}
	if n.Symbol() != fooSym {
		t.Fatalf("expected thrown name symbol to round-trip")
	}
}

func TestTrapBalance(t *testing.T) {
	tr := NewTracker()
	s := State{DataStackPtr: 1, FrameStackTop: 2}
	id := tr.Push(s)
	if tr.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", tr.Depth())
	}
	tr.Drop(id, s)
	if tr.Depth() != 0 {
		t.Fatalf("expected depth 0 after drop, got %d", tr.Depth())
	}
}

func TestTrapImbalancePanics(t *testing.T) {
	tr := NewTracker()
	s := State{DataStackPtr: 1}
	id := tr.Push(s)
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on mismatched drop state")
		}
	}()
	tr.Drop(id, State{DataStackPtr: 2})
}

func TestUnwindToDiscardsNestedTraps(t *testing.T) {
	tr := NewTracker()
	outer := tr.Push(State{DataStackPtr: 0})
	tr.Push(State{DataStackPtr: 1})
	tr.Push(State{DataStackPtr: 2})
	tr.UnwindTo(outer + 1)
	if tr.Depth() != outer+1 {
		t.Fatalf("expected depth %d, got %d", outer+1, tr.Depth())
	}
}
