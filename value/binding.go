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

// BindingKind classifies a Binding's shape.
type BindingKind uint8

const (
	// Unbound words have no binding at all.
	Unbound BindingKind = iota
	// Absolute bindings point directly at a context slot.
	Absolute
	// Relative bindings point at a function's paramlist slot and
	// require a Specifier (see package bind) naming the currently
	// running frame for that function before they can be
	// dereferenced.
	Relative
)

// Binding is the contents of a cell's "extra" slot for word and
// function cells (spec.md §3 Binding). It is plain data; resolving
// a Relative binding against a specifier is package bind's job, to
// keep the "a relative cell must never escape without its
// specifier" invariant enforced at one API boundary (spec.md §9).
type Binding struct {
	kind  BindingKind
	ctx   *Context // Absolute: target context. Relative: target paramlist context.
	index int      // 1-based slot index into ctx's varlist/keylist
}

// UnboundBinding is the zero Binding.
var UnboundBinding = Binding{kind: Unbound}

// NewAbsolute constructs an absolute binding to slot index of ctx.
func NewAbsolute(ctx *Context, index int) Binding {
	return Binding{kind: Absolute, ctx: ctx, index: index}
}

// NewRelative constructs a relative binding to slot index of a
// function's paramlist context.
func NewRelative(paramlist *Context, index int) Binding {
	return Binding{kind: Relative, ctx: paramlist, index: index}
}

func (b Binding) Kind() BindingKind { return b.kind }
func (b Binding) IsUnbound() bool   { return b.kind == Unbound }
func (b Binding) IsAbsolute() bool  { return b.kind == Absolute }
func (b Binding) IsRelative() bool  { return b.kind == Relative }

// Context returns the bound-to context (absolute) or paramlist
// (relative). Panics if the binding is unbound.
func (b Binding) Context() *Context {
	if b.kind == Unbound {
		panic("value: Context() on an unbound Binding")
	}
	return b.ctx
}

// Index returns the 1-based slot index. Panics if unbound.
func (b Binding) Index() int {
	if b.kind == Unbound {
		panic("value: Index() on an unbound Binding")
	}
	return b.index
}
