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

// Package symbol implements case-insensitive interning of word
// spellings into canonical symbol identities (spec.md §4.3).
//
// Intern is case-sensitive: "Foo" and "foo" receive distinct IDs.
// Both, however, share a Canon: the case-insensitive representative
// of their spelling equivalence class. Long-lived code must hash
// spelling bytes, never a canon's ID, since the canon of a class can
// be reassigned when its current representative is collected.
package symbol

import (
	"strings"
	"sync"

	"github.com/dchest/siphash"
	"golang.org/x/exp/maps"
)

// ID identifies one interned spelling. IDs are stable for the
// lifetime of the table; they are never reused even if the
// spelling is later forgotten.
type ID int32

// Invalid is returned by lookups that find nothing.
const Invalid ID = -1

type entry struct {
	spelling string
	canon    ID
	zombie   bool // true once Forget has removed this spelling from the probe table
}

// Table is a case-insensitive symbol interner backed by an
// open-addressed probe table with a co-prime step, per spec.md
// §4.3. Deletions tombstone probe slots ("zombies") rather than
// terminating the probe sequence, so lookups that pass through a
// tombstone keep searching.
type Table struct {
	mu      sync.Mutex
	entries []entry // append-only; index == ID
	slots   []int32 // 0 = empty, -1 = zombie, else entryIndex+1
	occ     int     // occupied (non-zombie) slot count
	k0, k1  uint64  // SipHash keys, fixed per table instance
}

// New creates an empty symbol table.
func New() *Table {
	t := &Table{
		slots: make([]int32, 17),
		k0:    0x0123456789abcdef,
		k1:    0xfedcba9876543210,
	}
	return t
}

func (t *Table) hash(b []byte) uint64 {
	return siphash.Hash(t.k0, t.k1, b)
}

// probeStep returns (index, step) for the given hash over a table
// of the given (prime) length, per spec.md's "step = hash % (len-1) + 1".
func probeStep(h uint64, tableLen int) (int, int) {
	idx := int(h % uint64(tableLen))
	step := int(h%uint64(tableLen-1)) + 1
	return idx, step
}

// lookupSlot searches the probe table for spelling, returning the
// slot index and whether an occupied (non-zombie) match was found.
// Passes through zombie slots without stopping.
func (t *Table) lookupSlot(spelling string, h uint64) (slot int, found bool) {
	n := len(t.slots)
	idx, step := probeStep(h, n)
	for tries := 0; tries < n; tries++ {
		v := t.slots[idx]
		if v == 0 {
			return idx, false // empty: definitively not present
		}
		if v > 0 && t.entries[v-1].spelling == spelling && !t.entries[v-1].zombie {
			return idx, true
		}
		idx = (idx + step) % n
	}
	return -1, false
}

// insertSlot finds a slot to place a new entry into, preferring the
// first empty-or-zombie slot encountered while scanning for an
// existing match (which should never occur given the Intern caller
// already checked lookupSlot).
func (t *Table) insertSlot(h uint64) int {
	n := len(t.slots)
	idx, step := probeStep(h, n)
	for tries := 0; tries < n; tries++ {
		if t.slots[idx] <= 0 {
			return idx
		}
		idx = (idx + step) % n
	}
	panic("symbol: probe table full despite load-factor rehash")
}

// Intern returns the canonical symbol ID for the exact (case-sensitive)
// spelling given by b, creating a new entry if this exact spelling has
// never been seen. The returned ID's Canon links it to the
// case-insensitive representative of its spelling class.
func (t *Table) Intern(b []byte) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.intern(string(b))
}

// InternString is Intern for an already-materialized string.
func (t *Table) InternString(s string) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.intern(s)
}

func (t *Table) intern(spelling string) ID {
	h := t.hash([]byte(spelling))
	if slot, ok := t.lookupSlot(spelling, h); ok {
		return ID(t.slots[slot] - 1)
	}
	if (t.occ+1)*2 > len(t.slots) {
		t.rehash()
	}
	id := ID(len(t.entries))
	canon := t.findOrMakeCanon(spelling, id)
	t.entries = append(t.entries, entry{spelling: spelling, canon: canon})
	slot := t.insertSlot(h)
	t.slots[slot] = int32(id) + 1
	t.occ++
	return id
}

// findOrMakeCanon locates the canon ID for the case-insensitive
// class of spelling. If no existing entry shares that class, the
// about-to-be-created entry (self) becomes the canon once it is
// fully interned by the caller.
func (t *Table) findOrMakeCanon(spelling string, self ID) ID {
	lower := strings.ToLower(spelling)
	if lower == spelling {
		// spelling is already canonical-form; check for an
		// existing canon among entries we've already interned.
		for i := range t.entries {
			if !t.entries[i].zombie && strings.ToLower(t.entries[i].spelling) == lower {
				return t.entries[i].canon
			}
		}
		return self
	}
	for i := range t.entries {
		if !t.entries[i].zombie && strings.ToLower(t.entries[i].spelling) == lower {
			return t.entries[i].canon
		}
	}
	return self
}

// Canon returns the case-insensitive representative symbol for id.
func (t *Table) Canon(id ID) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) < 0 || int(id) >= len(t.entries) {
		return Invalid
	}
	return t.entries[id].canon
}

// Spelling returns the exact spelling that interned to id.
func (t *Table) Spelling(id ID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) < 0 || int(id) >= len(t.entries) {
		return "", false
	}
	e := t.entries[id]
	return e.spelling, !e.zombie
}

// SameCanon reports whether two spellings belong to the same
// case-insensitive equivalence class, per testable property 6:
// Canon(Intern(s1)) == Canon(Intern(s2)) iff lowercase(s1) == lowercase(s2).
func (t *Table) SameCanon(a, b ID) bool {
	return t.Canon(a) == t.Canon(b) && t.Canon(a) != Invalid
}

// rehash grows the probe table to the next prime at least twice the
// current size and reinserts all live entries. Caller must hold t.mu.
func (t *Table) rehash() {
	newLen := nextPrime(len(t.slots)*2 + 1)
	old := t.slots
	t.slots = make([]int32, newLen)
	t.occ = 0
	for idx, v := range old {
		_ = idx
		if v <= 0 {
			continue
		}
		e := &t.entries[v-1]
		if e.zombie {
			continue
		}
		h := t.hash([]byte(e.spelling))
		slot := t.insertSlot(h)
		t.slots[slot] = v
		t.occ++
	}
}

// Forget removes spelling from the probe table, tombstoning its
// slot as a zombie; the entry's ID remains valid for Spelling/Canon
// lookups of cells that still reference it directly, but the
// spelling can no longer be found via Intern (a later Intern of the
// identical bytes creates a fresh entry and a fresh canon search).
//
// This models spec.md §3's "canons may be GC'd when unreferenced".
// Forget and ReassignCanon run only when a caller invokes them;
// package gc does not track symbol references and calls neither.
func (t *Table) Forget(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) < 0 || int(id) >= len(t.entries) {
		return
	}
	e := &t.entries[id]
	if e.zombie {
		return
	}
	h := t.hash([]byte(e.spelling))
	if slot, ok := t.lookupSlot(e.spelling, h); ok {
		t.slots[slot] = -1
		t.occ--
	}
	e.zombie = true
}

// ReassignCanon repoints every entry whose canon was oldCanon to
// newCanon. Used after Forget(oldCanon) when a synonym survives.
func (t *Table) ReassignCanon(oldCanon, newCanon ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i].canon == oldCanon {
			t.entries[i].canon = newCanon
		}
	}
}

// Live reports whether id still has a retrievable spelling (has not
// been forgotten).
func (t *Table) Live(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) < 0 || int(id) >= len(t.entries) {
		return false
	}
	return !t.entries[id].zombie
}

// Snapshot returns a point-in-time copy of every live spelling to
// its ID, for diagnostics (e.g. a REPL's WORDS-OF-style introspection).
func (t *Table) Snapshot() map[string]ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := make(map[string]ID, len(t.entries))
	for i, e := range t.entries {
		if !e.zombie {
			m[e.spelling] = ID(i)
		}
	}
	return maps.Clone(m)
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

func nextPrime(n int) int {
	if n < 2 {
		n = 2
	}
	for !isPrime(n) {
		n++
	}
	return n
}
