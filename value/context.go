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

// ContextKind distinguishes the five things a Context can back.
type ContextKind uint8

const (
	CtxObject ContextKind = iota
	CtxModule
	CtxFrame
	CtxError
	CtxPort
)

// KeyFlags are per-key attributes carried in the keylist.
type KeyFlags uint8

const (
	// KeyHidden keys are skipped by reflection/enumeration but
	// still settable/gettable by direct index.
	KeyHidden KeyFlags = 1 << iota
	// KeyLocked keys reject SET-WORD! assignment ("protected variable").
	KeyLocked
)

// KeyEntry is one keylist slot: the canon symbol of a variable
// plus its flags.
type KeyEntry struct {
	Sym   symbol.ID
	Flags KeyFlags
}

// Context is the varlist+keylist pair backing every object,
// module, frame, error, and port (spec.md §3 Context). Slot 0 of
// both series is the reserved "self" slot; variables occupy slots
// 1..N. len(varlist) == len(keylist) holds by construction (New,
// NewSharingKeylist and Add size both series together); no method
// re-checks it.
type Context struct {
	kind    ContextKind
	varlist *series.Series[Cell]
	keylist *series.Series[KeyEntry]
	expired bool
}

// ErrExpiredFrame is returned by Var/Key when reading from a frame
// Context whose call has already returned (spec.md §3: "reads of
// its variables yield a dedicated error").
type ErrExpiredFrame struct{}

func (ErrExpiredFrame) Error() string { return "value: variable access on an expired frame" }

// New creates a Context of the given kind holding `capacity` variable
// slots (not counting the reserved self slot), each void with a zero
// KeyEntry; Add appends further slots after them. The context
// starts unmanaged; the caller (or the GC subsystem) must Manage
// its two backing series once it is safe to do so.
func New(kind ContextKind, capacity int) *Context {
	vl := series.Make[Cell](capacity + 1)
	kl := series.Make[KeyEntry](capacity + 1)
	vl.Extend(Cell{}) // placeholder self cell, fixed up below
	kl.Extend(KeyEntry{})
	for i := 0; i < capacity; i++ {
		vl.Extend(Void())
		kl.Extend(KeyEntry{})
	}
	c := &Context{kind: kind, varlist: vl, keylist: kl}
	*vl.At(0) = ContextCell(CellKindFor(kind), c)
	return c
}

// NewSharingKeylist creates a fresh Context of the given kind that
// shares an existing keylist series (spec.md: "Keylists may be
// shared among contexts with identical key sets"). The new
// context's variables all start void except for the self slot. The
// shared keylist is marked fixed-size, so Add fails on every context
// sharing it.
func NewSharingKeylist(kind ContextKind, keylist *series.Series[KeyEntry]) *Context {
	keylist.SetFixedSize()
	n := keylist.Len()
	vl := series.Make[Cell](n)
	for i := 0; i < n; i++ {
		vl.Extend(Void())
	}
	c := &Context{kind: kind, varlist: vl, keylist: keylist}
	*vl.At(0) = ContextCell(CellKindFor(kind), c)
	return c
}

func (c *Context) Kind() ContextKind { return c.kind }

// Len returns the total slot count, including the reserved self slot.
func (c *Context) Len() int { return c.varlist.Len() }

// VarlistSeries exposes the backing varlist series, for the
// collector to mark and for code that needs to Manage it.
func (c *Context) VarlistSeries() *series.Series[Cell] { return c.varlist }

// KeylistSeries exposes the backing keylist series.
func (c *Context) KeylistSeries() *series.Series[KeyEntry] { return c.keylist }

// Expire marks a frame Context as no longer live; subsequent Var
// reads return ErrExpiredFrame. Only meaningful for CtxFrame.
func (c *Context) Expire() { c.expired = true }

// Expired reports whether the context has been marked expired.
func (c *Context) Expired() bool { return c.expired }

// Var returns a pointer to the variable cell at 1-based index i
// (i == 0 is the reserved self slot, also readable through this
// method for convenience).
func (c *Context) Var(i int) (*Cell, error) {
	if c.expired {
		return nil, ErrExpiredFrame{}
	}
	if i < 0 || i >= c.varlist.Len() {
		return nil, fmt.Errorf("value: context variable index %d out of range [0,%d)", i, c.varlist.Len())
	}
	return c.varlist.At(i), nil
}

// Key returns the keylist entry at 1-based index i.
func (c *Context) Key(i int) (KeyEntry, error) {
	if i < 0 || i >= c.keylist.Len() {
		return KeyEntry{}, fmt.Errorf("value: context key index %d out of range [0,%d)", i, c.keylist.Len())
	}
	return *c.keylist.At(i), nil
}

// Find returns the 1-based slot index of the variable whose
// key symbol is sym, or (0, false) if no such key exists. The
// comparison is by exact symbol ID; Find does no canonicalization of
// its own.
func (c *Context) Find(sym symbol.ID) (int, bool) {
	n := c.keylist.Len()
	for i := 1; i < n; i++ {
		if c.keylist.At(i).Sym == sym {
			return i, true
		}
	}
	return 0, false
}

// Add appends a new key+variable slot, initialized to void, and
// returns its 1-based index. Fails if the keylist is shared with
// another context (adding would desynchronize var/key lengths
// between them): NewSharingKeylist marks a shared keylist fixed-size,
// so its Extend fails. A context given a private copy through
// PrivateKeylist can grow again.
func (c *Context) Add(sym symbol.ID, flags KeyFlags) (int, error) {
	if err := c.keylist.Extend(KeyEntry{Sym: sym, Flags: flags}); err != nil {
		return 0, err
	}
	if err := c.varlist.Extend(Void()); err != nil {
		return 0, err
	}
	return c.varlist.Len() - 1, nil
}

// SetVar stores v into slot i, enforcing the Storable invariants
// (no thrown cell, no void) and the KeyLocked protection flag.
func (c *Context) SetVar(i int, v Cell) error {
	if c.expired {
		return ErrExpiredFrame{}
	}
	if err := v.Storable(); err != nil {
		return err
	}
	k, err := c.Key(i)
	if err != nil {
		return err
	}
	if k.Flags&KeyLocked != 0 {
		return fmt.Errorf("value: protected variable")
	}
	*c.varlist.At(i) = v
	return nil
}

// PrivateKeylist returns a private (unshared) copy of the keylist,
// replacing the context's own keylist pointer, so that subsequent
// Add calls no longer affect any context this one used to share
// keys with.
func (c *Context) PrivateKeylist() {
	c.keylist = c.keylist.Clone()
}
