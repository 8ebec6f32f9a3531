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
	"fmt"

	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/symbol"
)

// Cell is the fixed-shape universal value record: a kind tag, a
// small set of cell-level flags, a type-specific payload, and an
// "extra" slot used for bindings. Accessors validate the kind and
// panic (via ErrKindMismatch) on mismatch, and panic on any read of
// an KindUnreadable cell — matching spec.md §3's "4-machine-word
// tagged value" redesigned as a plain Go struct with checked
// accessors instead of bit-layout tricks (Design Notes §9).
type Cell struct {
	kind  Kind
	flags Flags

	i64 int64
	f64 float64
	x, y uint32

	sym symbol.ID
	ser any // one of *series.Series[byte], *series.Series[uint16], *series.Series[Cell]
	idx int32

	ctx *Context
	fn  *Function

	extra Binding
}

// ErrKindMismatch is panicked by a typed accessor invoked on a
// cell of the wrong kind.
type ErrKindMismatch struct {
	Want, Got Kind
}

func (e ErrKindMismatch) Error() string {
	return fmt.Sprintf("value: expected %s cell, got %s", e.Want, e.Got)
}

// ErrUnreadable is panicked by any payload accessor invoked on a
// KindUnreadable cell.
type ErrUnreadable struct{}

func (ErrUnreadable) Error() string { return "value: read of unreadable cell" }

func (c *Cell) checkReadable() {
	if c.kind == KindUnreadable {
		panic(ErrUnreadable{})
	}
}

func (c *Cell) checkKind(want Kind) {
	c.checkReadable()
	if c.kind != want {
		panic(ErrKindMismatch{Want: want, Got: c.kind})
	}
}

// Kind returns the cell's type tag. Always safe to call, even on
// an unreadable or end cell.
func (c *Cell) Kind() Kind { return c.kind }

// Flags returns the cell's flag bits.
func (c *Cell) Flags() Flags { return c.flags }

// SetFlag sets the given flag bits.
func (c *Cell) SetFlag(f Flags) { c.flags |= f }

// ClearFlag clears the given flag bits.
func (c *Cell) ClearFlag(f Flags) { c.flags &^= f }

// HasFlag reports whether all bits in f are set.
func (c *Cell) HasFlag(f Flags) bool { return c.flags&f == f }

// IsEnd reports whether c is the end marker.
func (c *Cell) IsEnd() bool { return c.kind == KindEnd }

// IsVoid reports whether c is the void kind.
func (c *Cell) IsVoid() bool { return c.kind == KindVoid }

// End returns a fresh end-marker cell. The end marker is logically
// a read-only singleton; returning a fresh copy each time sidesteps
// any need for callers to avoid mutating a shared instance.
func End() Cell { return Cell{kind: KindEnd} }

// MakeUnreadable returns a fresh unreadable cell. Such a cell may
// be overwritten (written) freely; any attempt to read its payload
// panics with ErrUnreadable.
func MakeUnreadable() Cell { return Cell{kind: KindUnreadable} }

// Void returns a fresh void cell.
func Void() Cell { return Cell{kind: KindVoid} }

// Blank returns a fresh blank (NONE!) cell.
func Blank() Cell { return Cell{kind: KindBlank} }

// Bar returns a fresh expression-barrier cell.
func Bar() Cell { return Cell{kind: KindBar} }

// Logic constructs a LOGIC! cell.
func Logic(b bool) Cell {
	var i int64
	if b {
		i = 1
	}
	return Cell{kind: KindLogic, i64: i}
}

// Logic returns the cell's boolean payload.
func (c *Cell) Logic() bool {
	c.checkKind(KindLogic)
	return c.i64 != 0
}

// Integer constructs an INTEGER! cell.
func Integer(n int64) Cell { return Cell{kind: KindInteger, i64: n} }

// Int returns the cell's integer payload.
func (c *Cell) Int() int64 {
	c.checkKind(KindInteger)
	return c.i64
}

// Float constructs a FLOAT! cell.
func Float(f float64) Cell { return Cell{kind: KindFloat, f64: f} }

// Float64 returns the cell's float payload.
func (c *Cell) Float64() float64 {
	c.checkKind(KindFloat)
	return c.f64
}

// Pair constructs a PAIR! cell.
func Pair(x, y uint32) Cell { return Cell{kind: KindPair, x: x, y: y} }

// Pair returns the cell's (x, y) payload.
func (c *Cell) Pair() (uint32, uint32) {
	c.checkKind(KindPair)
	return c.x, c.y
}

// Word constructs a word-shaped cell of the given kind (one of
// KindWord, KindSetWord, KindGetWord, KindLitWord, KindRefinement)
// carrying sym, initially unbound.
func Word(kind Kind, sym symbol.ID) Cell {
	if !kind.IsWord() {
		panic(ErrKindMismatch{Want: KindWord, Got: kind})
	}
	return Cell{kind: kind, sym: sym, extra: UnboundBinding}
}

// Symbol returns the word cell's spelling symbol.
func (c *Cell) Symbol() symbol.ID {
	c.checkReadable()
	if !c.kind.IsWord() {
		panic(ErrKindMismatch{Want: KindWord, Got: c.kind})
	}
	return c.sym
}

// Binding returns the word or function cell's binding.
func (c *Cell) Binding() Binding {
	c.checkReadable()
	if !c.kind.IsWord() && c.kind != KindFunction {
		panic(ErrKindMismatch{Want: KindWord, Got: c.kind})
	}
	return c.extra
}

// SetBinding replaces the word or function cell's binding. A
// Relative binding may only be set on a cell that will subsequently
// be accessed through a Specifier (see package bind); storing a
// relative cell into a long-lived slot without resolving it first
// is the exact hazard spec.md §9 calls out.
func (c *Cell) SetBinding(b Binding) {
	if !c.kind.IsWord() && c.kind != KindFunction {
		panic(ErrKindMismatch{Want: KindWord, Got: c.kind})
	}
	c.extra = b
}

// Array constructs a cell of one of the array kinds (block, group,
// or any path kind) over the given cell-width series.
func Array(kind Kind, s *series.Series[Cell]) Cell {
	if !kind.IsArray() {
		panic(ErrKindMismatch{Want: KindBlock, Got: kind})
	}
	return Cell{kind: kind, ser: s}
}

// ArrayAt is Array with a non-zero starting index (paths and
// blocks both carry a position, per spec.md's {series*, index}
// payload).
func ArrayAt(kind Kind, s *series.Series[Cell], index int32) Cell {
	c := Array(kind, s)
	c.idx = index
	return c
}

// ArraySeries returns the cell's backing array series.
func (c *Cell) ArraySeries() *series.Series[Cell] {
	c.checkReadable()
	if !c.kind.IsArray() {
		panic(ErrKindMismatch{Want: KindBlock, Got: c.kind})
	}
	return c.ser.(*series.Series[Cell])
}

// Index returns the cell's position within its backing series.
func (c *Cell) Index() int32 {
	c.checkReadable()
	return c.idx
}

// SetIndex overwrites the cell's position within its backing series.
func (c *Cell) SetIndex(i int32) { c.idx = i }

// String constructs a STRING! cell (UTF-8 byte-width series).
func String(s *series.Series[byte]) Cell {
	return Cell{kind: KindString, ser: s}
}

// Binary constructs a BINARY! cell (byte-width series).
func Binary(s *series.Series[byte]) Cell {
	return Cell{kind: KindBinary, ser: s}
}

// ByteSeries returns the cell's backing byte series (STRING! or
// BINARY!).
func (c *Cell) ByteSeries() *series.Series[byte] {
	c.checkReadable()
	if c.kind != KindString && c.kind != KindBinary {
		panic(ErrKindMismatch{Want: KindString, Got: c.kind})
	}
	return c.ser.(*series.Series[byte])
}

// WideString constructs a wide-string cell (16-bit code unit series).
func WideString(s *series.Series[uint16]) Cell {
	return Cell{kind: KindString, ser: s, idx: 1} // idx=1 tags "wide" representation
}

// WideSeries returns the cell's backing wide-string series. Only
// valid if the cell was constructed with WideString.
func (c *Cell) WideSeries() *series.Series[uint16] {
	c.checkKind(KindString)
	return c.ser.(*series.Series[uint16])
}

// IsWide reports whether a STRING! cell uses the 16-bit backing.
func (c *Cell) IsWide() bool { return c.kind == KindString && c.idx == 1 }

// FunctionCell constructs a FUNCTION! cell.
func FunctionCell(fn *Function) Cell {
	return Cell{kind: KindFunction, fn: fn, extra: UnboundBinding}
}

// FunctionValue returns the cell's function payload.
func (c *Cell) FunctionValue() *Function {
	c.checkKind(KindFunction)
	return c.fn
}

// ContextCell constructs a cell of one of the context kinds wrapping ctx.
func ContextCell(kind Kind, ctx *Context) Cell {
	if !kind.IsContext() {
		panic(ErrKindMismatch{Want: KindObject, Got: kind})
	}
	return Cell{kind: kind, ctx: ctx}
}

// ContextValue returns the cell's context payload.
func (c *Cell) ContextValue() *Context {
	c.checkReadable()
	if !c.kind.IsContext() {
		panic(ErrKindMismatch{Want: KindObject, Got: c.kind})
	}
	return c.ctx
}

// StripQuote converts a LIT-WORD!/LIT-PATH! cell into the
// underlying WORD!/PATH! it quotes, per spec.md's evaluator
// transition rule for lit-kinds ("strip one level of quoting").
func (c Cell) StripQuote() Cell {
	switch c.kind {
	case KindLitWord:
		c.kind = KindWord
	case KindLitPath:
		c.kind = KindPath
	default:
		panic(ErrKindMismatch{Want: KindLitWord, Got: c.kind})
	}
	return c
}

// ErrThrownEscaped is returned by Storable when a thrown cell would
// be stored into a long-lived aggregate, which spec.md §3 forbids.
var ErrThrownEscaped = fmt.Errorf("value: a thrown cell may not be stored into an aggregate")

// ErrVoidNotStorable is returned by Storable when a caller attempts
// to store a Void cell somewhere spec.md forbids it (array element,
// "set" object variable slot, or a public MAP! value).
var ErrVoidNotStorable = fmt.Errorf("value: void may not be stored here")

// Storable checks the two storage invariants spec.md §3 names:
// a thrown cell must never land in an aggregate, and void must
// never land in an array or a context variable slot. Callers that
// build arrays or assign context variables must check this before
// committing the cell.
func (c *Cell) Storable() error {
	if c.HasFlag(Thrown) {
		return ErrThrownEscaped
	}
	if c.kind == KindVoid {
		return ErrVoidNotStorable
	}
	return nil
}
