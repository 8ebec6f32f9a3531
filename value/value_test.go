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

package value

import (
	"testing"

	"github.com/ren-lang/core/symbol"
)

func TestIntegerAccessor(t *testing.T) {
	c := Integer(42)
	if c.Int() != 42 {
		t.Fatalf("expected 42, got %d", c.Int())
	}
}

func TestKindMismatchPanics(t *testing.T) {
	c := Integer(1)
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on kind mismatch")
		}
	}()
	c.Logic()
}

func TestUnreadablePanicsOnRead(t *testing.T) {
	c := MakeUnreadable()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic reading an unreadable cell")
		}
	}()
	c.Int()
}

func TestStorableRejectsThrownAndVoid(t *testing.T) {
	v := Void()
	if err := v.Storable(); err != ErrVoidNotStorable {
		t.Fatalf("expected ErrVoidNotStorable, got %v", err)
	}
	c := Integer(1)
	c.SetFlag(Thrown)
	if err := c.Storable(); err != ErrThrownEscaped {
		t.Fatalf("expected ErrThrownEscaped, got %v", err)
	}
}

func TestContextSelfSlot(t *testing.T) {
	ctx := New(CtxObject, 2)
	if ctx.Len() != 3 {
		t.Fatalf("expected 3 slots (self + 2 vars), got %d", ctx.Len())
	}
	self, err := ctx.Var(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if self.Kind() != KindObject {
		t.Fatalf("expected self slot to be an object! cell, got %s", self.Kind())
	}
	if self.ContextValue() != ctx {
		t.Fatalf("expected self slot to point back at its own context")
	}
}

func TestContextFindAndSetVar(t *testing.T) {
	tbl := symbol.New()
	x := tbl.InternString("x")
	ctx := New(CtxObject, 1)
	ctx.keylist.At(1).Sym = x
	if err := ctx.SetVar(1, Integer(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx, ok := ctx.Find(x)
	if !ok || idx != 1 {
		t.Fatalf("expected to find x at index 1, got idx=%d ok=%v", idx, ok)
	}
	v, _ := ctx.Var(idx)
	if v.Int() != 10 {
		t.Fatalf("expected 10, got %d", v.Int())
	}
}

func TestContextExpiry(t *testing.T) {
	ctx := New(CtxFrame, 1)
	ctx.Expire()
	if _, err := ctx.Var(0); err == nil {
		t.Fatalf("expected ErrExpiredFrame")
	}
}

func TestSetVarRejectsLockedKey(t *testing.T) {
	tbl := symbol.New()
	y := tbl.InternString("y")
	ctx := New(CtxObject, 1)
	ctx.keylist.At(1).Sym = y
	ctx.keylist.At(1).Flags |= KeyLocked
	if err := ctx.SetVar(1, Integer(1)); err == nil {
		t.Fatalf("expected protected-variable error")
	}
}

func TestSetBindingStoresRelative(t *testing.T) {
	tbl := symbol.New()
	w := Word(KindWord, tbl.InternString("x"))
	if !w.Binding().IsUnbound() {
		t.Fatalf("fresh word should be unbound")
	}
	paramlist := New(CtxFrame, 1)
	w.SetBinding(NewRelative(paramlist, 1))
	if !w.Binding().IsRelative() {
		t.Fatalf("expected relative binding")
	}
}
