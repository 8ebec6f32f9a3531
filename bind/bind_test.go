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

package bind

import (
	"errors"
	"testing"

	"github.com/ren-lang/core/symbol"
	"github.com/ren-lang/core/value"
)

func TestResolveUnbound(t *testing.T) {
	tbl := symbol.New()
	w := value.Word(value.KindWord, tbl.InternString("x"))
	if _, _, err := Resolve(&w, None); !errors.Is(err, ErrUnbound) {
		t.Fatalf("expected ErrUnbound, got %v", err)
	}
}

func TestResolveAbsolute(t *testing.T) {
	tbl := symbol.New()
	sym := tbl.InternString("x")
	ctx := value.New(value.CtxObject, 1)
	ctx.KeylistSeries().At(1).Sym = sym
	ctx.SetVar(1, value.Integer(7))

	w := value.Word(value.KindWord, sym)
	BindAbsolute(&w, ctx, 1)

	v, vctx, idx, err := Lookup(&w, None)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vctx != ctx || idx != 1 {
		t.Fatalf("unexpected resolution target")
	}
	if v.Int() != 7 {
		t.Fatalf("expected 7, got %d", v.Int())
	}
}

func TestResolveRelativeRequiresSpecifier(t *testing.T) {
	tbl := symbol.New()
	sym := tbl.InternString("y")
	paramlist := value.New(value.CtxFrame, 1)
	paramlist.KeylistSeries().At(1).Sym = sym

	w := value.Word(value.KindWord, sym)
	BindRelative(&w, paramlist, 1)

	if _, _, err := Resolve(&w, None); !errors.Is(err, ErrMissingSpecifier) {
		t.Fatalf("expected ErrMissingSpecifier, got %v", err)
	}

	frame := value.New(value.CtxFrame, 1)
	frame.SetVar(1, value.Integer(9))
	ctx, idx, err := Resolve(&w, Specifier{Frame: frame})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx != frame || idx != 1 {
		t.Fatalf("unexpected resolution target")
	}
}

func TestSafeCopyResolvesOrErrors(t *testing.T) {
	tbl := symbol.New()
	sym := tbl.InternString("z")
	paramlist := value.New(value.CtxFrame, 1)
	paramlist.KeylistSeries().At(1).Sym = sym
	w := value.Word(value.KindWord, sym)
	BindRelative(&w, paramlist, 1)

	if _, err := SafeCopy(w, None); !errors.Is(err, ErrRelativeEscaped) {
		t.Fatalf("expected ErrRelativeEscaped, got %v", err)
	}

	frame := value.New(value.CtxFrame, 1)
	out, err := SafeCopy(w, Specifier{Frame: frame})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Binding().IsAbsolute() {
		t.Fatalf("expected resolved copy to carry an absolute binding")
	}
}
