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

// Package bind resolves word-shaped cells to context slots
// (spec.md §3 Binding, §9 design note on relative bindings). A
// Relative binding is useless on its own — it names a slot in a
// function's paramlist, which only becomes a concrete variable once
// paired with the Context of the frame currently running that
// function. Package bind is the one place that pairing happens, so
// that a relative cell can never silently escape into long-lived
// storage without first being resolved to an absolute binding.
package bind

import (
	"errors"
	"fmt"

	"github.com/ren-lang/core/value"
)

// Specifier names the running frame Context that gives a Relative
// binding meaning. The zero Specifier (None) has no Frame and can
// only resolve cells that are already Unbound or Absolute.
type Specifier struct {
	Frame *value.Context
}

// None is the specifier for code whose words are already
// known to carry only absolute (or unbound) bindings.
var None = Specifier{}

// ErrUnbound is returned when resolving a word with no binding at all.
var ErrUnbound = errors.New("bind: word is unbound")

// ErrMissingSpecifier is returned when resolving a Relative binding
// with a Specifier that has no Frame.
var ErrMissingSpecifier = errors.New("bind: relative word requires a specifier")

// ErrRelativeEscaped is returned by SafeCopy when a Relative cell
// would otherwise be copied into storage without ever being paired
// with a specifier — the stricter of the two policies spec.md §9
// leaves open, chosen per DESIGN.md.
var ErrRelativeEscaped = errors.New("bind: relative binding cannot escape without a specifier")

// Resolve returns the concrete (Context, slot-index) pair that c's
// binding refers to, given the Specifier for the array c came from.
// It does not mutate c; it is used for the transient lookups the
// evaluator performs on every WORD! it visits.
func Resolve(c *value.Cell, spec Specifier) (*value.Context, int, error) {
	b := c.Binding()
	switch b.Kind() {
	case value.Unbound:
		return nil, 0, ErrUnbound
	case value.Absolute:
		return b.Context(), b.Index(), nil
	case value.Relative:
		if spec.Frame == nil {
			return nil, 0, ErrMissingSpecifier
		}
		return spec.Frame, b.Index(), nil
	default:
		return nil, 0, fmt.Errorf("bind: unknown binding kind %d", b.Kind())
	}
}

// Lookup resolves c and returns a pointer to the variable cell it
// names, along with the resolved Binding::Context() for callers
// that need to know which context answered (e.g. to check
// KeyLocked before assignment).
func Lookup(c *value.Cell, spec Specifier) (*value.Cell, *value.Context, int, error) {
	ctx, idx, err := Resolve(c, spec)
	if err != nil {
		return nil, nil, 0, err
	}
	v, err := ctx.Var(idx)
	if err != nil {
		return nil, nil, 0, err
	}
	return v, ctx, idx, nil
}

// BindAbsolute gives c an absolute binding directly, used by the
// binder that walks a freshly scanned array and attaches each word
// to a context (spec.md §6.2: "Scanner produces an array of cells
// whose bindings are unbound; the core binds them").
func BindAbsolute(c *value.Cell, ctx *value.Context, index int) {
	c.SetBinding(value.NewAbsolute(ctx, index))
}

// BindRelative gives c a relative binding into a function's
// paramlist; it must only ever be read back out through Resolve
// paired with a Specifier for the frame currently running that
// function.
func BindRelative(c *value.Cell, paramlist *value.Context, index int) {
	c.SetBinding(value.NewRelative(paramlist, index))
}

// SafeCopy returns a copy of c suitable for storage outside the
// array/specifier pair it came from. If c carries a Relative
// binding, SafeCopy resolves it to an Absolute binding against
// spec.Frame before returning the copy; if spec has no Frame, it
// fails with ErrRelativeEscaped rather than let the relative cell
// escape unresolved (the stricter of spec.md §9's two policy
// choices). Non-word cells and already-Absolute/Unbound words are
// returned unchanged.
func SafeCopy(c value.Cell, spec Specifier) (value.Cell, error) {
	if !c.Kind().IsWord() {
		return c, nil
	}
	b := c.Binding()
	if !b.IsRelative() {
		return c, nil
	}
	if spec.Frame == nil {
		return value.Cell{}, ErrRelativeEscaped
	}
	c.SetBinding(value.NewAbsolute(spec.Frame, b.Index()))
	return c, nil
}
