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

package eval

import (
	"testing"

	"github.com/ren-lang/core/bind"
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/symbol"
	"github.com/ren-lang/core/value"
)

// testEnv wires a root context holding the two enfix arithmetic
// natives kept in scope per SPEC_FULL.md's minimal native table, plus
// whatever extra settable variables a test needs.
type testEnv struct {
	tbl *symbol.Table
	ctx *value.Context
}

func newTestEnv(extraVars ...string) *testEnv {
	tbl := symbol.New()
	ctx := value.New(value.CtxObject, 0)

	addFn := func(name string, dispatch value.Dispatcher) {
		sym := tbl.InternString(name)
		idx, _ := ctx.Add(sym, 0)
		fn := value.NewFunction(name, []value.Param{
			{Sym: tbl.InternString("left"), Convention: value.ConvNormal},
			{Sym: tbl.InternString("right"), Convention: value.ConvNormal},
		}, nil, dispatch)
		cell := value.FunctionCell(fn)
		cell.SetFlag(value.Enfix)
		ctx.SetVar(idx, cell)
	}
	addFn("+", func(a value.Args) error {
		*a.Out() = value.Integer(a.Arg(1).Int() + a.Arg(2).Int())
		return nil
	})
	addFn("*", func(a value.Args) error {
		*a.Out() = value.Integer(a.Arg(1).Int() * a.Arg(2).Int())
		return nil
	})
	for _, name := range extraVars {
		sym := tbl.InternString(name)
		idx, _ := ctx.Add(sym, 0)
		ctx.SetVar(idx, value.Integer(0))
	}
	return &testEnv{tbl: tbl, ctx: ctx}
}

func (e *testEnv) word(kind value.Kind, name string) value.Cell {
	sym := e.tbl.InternString(name)
	idx, ok := e.ctx.Find(sym)
	if !ok {
		panic("testEnv: unknown var " + name)
	}
	c := value.Word(kind, sym)
	bind.BindAbsolute(&c, e.ctx, idx)
	return c
}

func block(cells ...value.Cell) *series.Series[value.Cell] {
	s := series.Make[value.Cell](len(cells))
	s.Extend(cells...)
	return s
}

// TestEnfixLeftToRight covers spec.md §8 scenario (a): `1 + 2 * 3`
// evaluates strictly left-to-right, so (1+2)*3 == 9, not 1+(2*3).
func TestEnfixLeftToRight(t *testing.T) {
	env := newTestEnv()
	arr := block(
		value.Integer(1),
		env.word(value.KindWord, "+"),
		value.Integer(2),
		env.word(value.KindWord, "*"),
		value.Integer(3),
	)

	ev := New(env.tbl)
	oc := ev.DoArray(arr, 0, bind.None)
	if !oc.IsValue() {
		t.Fatalf("expected a value outcome, got %+v", oc)
	}
	if got := oc.Value.Int(); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

// TestSetWordThenEnfixRead covers the set-word + variable-lookup half
// of spec.md §8 scenario (c): `x: 10  x + 5` assigns then reads x
// back through a plain WORD! before the enfix call consumes it.
func TestSetWordThenEnfixRead(t *testing.T) {
	env := newTestEnv("x")
	arr := block(
		env.word(value.KindSetWord, "x"),
		value.Integer(10),
		env.word(value.KindWord, "x"),
		env.word(value.KindWord, "+"),
		value.Integer(5),
	)

	ev := New(env.tbl)
	oc := ev.DoArray(arr, 0, bind.None)
	if !oc.IsValue() {
		t.Fatalf("expected a value outcome, got %+v", oc)
	}
	if got := oc.Value.Int(); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}

	idx, _ := env.ctx.Find(env.tbl.InternString("x"))
	v, _ := env.ctx.Var(idx)
	if v.Int() != 10 {
		t.Fatalf("expected x to remain 10 after being read, got %d", v.Int())
	}
}

// TestUnboundWordFails covers the not-bound error category spec.md
// §7 requires a lookup of an unbound word to raise.
func TestUnboundWordFails(t *testing.T) {
	tbl := symbol.New()
	sym := tbl.InternString("nope")
	c := value.Word(value.KindWord, sym)
	arr := block(c)

	ev := New(tbl)
	oc := ev.DoArray(arr, 0, bind.None)
	if !oc.IsError() {
		t.Fatalf("expected an error outcome, got %+v", oc)
	}
}

// TestGroupEvaluatesEagerly covers the GROUP! transition rule: a
// group nested inside a block runs immediately and its result
// replaces it as the primary value for the surrounding expression.
func TestGroupEvaluatesEagerly(t *testing.T) {
	env := newTestEnv()
	inner := block(value.Integer(2), env.word(value.KindWord, "+"), value.Integer(3))
	group := value.ArrayAt(value.KindGroup, inner, 0)
	arr := block(group, env.word(value.KindWord, "*"), value.Integer(10))

	ev := New(env.tbl)
	oc := ev.DoArray(arr, 0, bind.None)
	if !oc.IsValue() {
		t.Fatalf("expected a value outcome, got %+v", oc)
	}
	if got := oc.Value.Int(); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

// TestLitWordStripsQuote covers the LIT-WORD! transition rule: it
// self-evaluates to the plain WORD! it quotes, without a lookup.
func TestLitWordStripsQuote(t *testing.T) {
	tbl := symbol.New()
	sym := tbl.InternString("foo")
	litC := value.Word(value.KindLitWord, sym)
	arr := block(litC)

	ev := New(tbl)
	oc := ev.DoArray(arr, 0, bind.None)
	if !oc.IsValue() {
		t.Fatalf("expected a value outcome, got %+v", oc)
	}
	if oc.Value.Kind() != value.KindWord {
		t.Fatalf("expected a plain word, got kind %s", oc.Value.Kind())
	}
	if oc.Value.Symbol() != sym {
		t.Fatalf("expected the same spelling to round-trip")
	}
}

// TestRefinementViaPathActivatesSwitch covers the refinement-gathering
// rule spec.md §8 scenario (e) relies on: a PATH! call's selector
// words beyond the head activate the matching ConvRefinement
// parameter, and only that refinement's own trailing args are
// gathered from the input stream.
func TestRefinementViaPathActivatesSwitch(t *testing.T) {
	tbl := symbol.New()
	ctx := value.New(value.CtxObject, 1)
	fnSym := tbl.InternString("tag")
	idx, _ := ctx.Add(fnSym, 0)

	withSym := tbl.InternString("with")
	extraSym := tbl.InternString("extra")
	fn := value.NewFunction("tag", []value.Param{
		{Sym: withSym, Convention: value.ConvRefinement},
		{Sym: extraSym, Convention: value.ConvNormal},
	}, nil, func(a value.Args) error {
		if a.Arg(1).Logic() {
			*a.Out() = *a.Arg(2)
		} else {
			*a.Out() = value.Integer(-1)
		}
		return nil
	})
	ctx.SetVar(idx, value.FunctionCell(fn))

	headWord := value.Word(value.KindWord, fnSym)
	bind.BindAbsolute(&headWord, ctx, idx)
	withWord := value.Word(value.KindWord, withSym)

	pathArr := block(headWord, withWord)
	pathCell := value.ArrayAt(value.KindPath, pathArr, 0)
	arr := block(pathCell, value.Integer(99))

	ev := New(tbl)
	oc := ev.DoArray(arr, 0, bind.None)
	if !oc.IsValue() {
		t.Fatalf("expected a value outcome, got %+v", oc)
	}
	if got := oc.Value.Int(); got != 99 {
		t.Fatalf("expected the refinement's arg 99 to flow through, got %d", got)
	}
}
