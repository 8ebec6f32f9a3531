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
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/symbol"
)

// Convention is a parameter's argument-gathering rule (spec.md §4.6
// "Function dispatch" step 2).
type Convention uint8

const (
	// ConvNormal evaluates one expression to fill the argument.
	ConvNormal Convention = iota
	// ConvHardQuote takes the next value verbatim, unevaluated.
	ConvHardQuote
	// ConvSoftQuote takes the next value verbatim unless it is a
	// GROUP!/GET-WORD!/GET-PATH!, in which case it is evaluated.
	ConvSoftQuote
	// ConvRefinement is a named optional switch; parameters that
	// follow it in the paramlist are that refinement's own args.
	ConvRefinement
	// ConvLocal parameters are never filled by the caller; they
	// are initialized to void.
	ConvLocal
	// ConvVariadic parameters receive a handle to the caller's
	// feed instead of a single gathered value.
	ConvVariadic
)

// Param describes one paramlist slot.
type Param struct {
	Sym        symbol.ID
	Convention Convention
	// Types restricts the argument's Kind; nil/empty means "any".
	Types []Kind
}

// Accepts reports whether k satisfies p's typeset.
func (p Param) Accepts(k Kind) bool {
	if len(p.Types) == 0 {
		return true
	}
	for _, t := range p.Types {
		if t == k {
			return true
		}
	}
	return false
}

// Args is the narrow interface a Dispatcher uses to read its
// gathered arguments and write its result, implemented by the
// evaluator's frame type. Defining it here (rather than importing
// the eval package, which itself needs Function to set up a call)
// breaks what would otherwise be a value<->eval import cycle.
type Args interface {
	// Arg returns the 1-based gathered argument slot (index 1
	// is the first declared parameter).
	Arg(i int) *Cell
	// Out returns the frame's output cell.
	Out() *Cell
	// SetThrown writes a thrown value (name, arg) into the
	// frame's out/thrown-arg slots and sets the Thrown flag on
	// Out(), per the throw/trap protocol (spec.md §4.7).
	SetThrown(name, arg Cell)
}

// Dispatcher is a function body: native Go code (for NATIVE!s) or
// the evaluator's own interpreter loop (for FUNC!s, wired up by
// package boot's FUNC native). It writes its result via a.Out() and returns a Go
// error only for conditions that should fail immediately to the
// nearest trap; throws are signaled via a.SetThrown, not by the
// Go error return.
type Dispatcher func(a Args) error

// Function is the payload of a KindFunction cell: its calling
// convention list, the paramlist Context used both for argument
// binding and as the target of any Relative bindings inside Body,
// and either a native Dispatcher or a Body array interpreted by
// the evaluator.
type Function struct {
	Name      string
	Params    []Param
	Paramlist *Context // CtxFrame kind; keylist holds Params[i].Sym at slot i+1
	Body      *series.Series[Cell]
	Dispatch  Dispatcher
}

// NewFunction builds a Function and its paramlist Context from a
// parameter list, ready to be wrapped in a FunctionCell.
func NewFunction(name string, params []Param, body *series.Series[Cell], dispatch Dispatcher) *Function {
	pl := New(CtxFrame, len(params))
	for i, p := range params {
		pl.keylist.At(i + 1).Sym = p.Sym
	}
	return &Function{Name: name, Params: params, Paramlist: pl, Body: body, Dispatch: dispatch}
}

// Arity returns the number of declared parameters (not counting
// the reserved self slot).
func (f *Function) Arity() int { return len(f.Params) }

// Refinements reports which parameter indices (1-based, into
// Params) are ConvRefinement switches.
func (f *Function) Refinements() []int {
	var out []int
	for i, p := range f.Params {
		if p.Convention == ConvRefinement {
			out = append(out, i+1)
		}
	}
	return out
}
