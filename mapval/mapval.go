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

// Package mapval implements the MAP! value (spec.md §4.4): a pairlist
// of [key, value, key, value, ...] cells addressed by a co-prime
// open-addressed hashlist, following the same probing discipline
// package symbol uses for its own interning table. Deletions tombstone
// the value slot with an internal void rather than shrinking the
// pairlist, and mark the key's hashlist slot as a zombie that a later
// insert with a matching probe sequence can reuse; the zombie pair
// itself stays in the pairlist until the next rehash drops it.
package mapval

import (
	"errors"
	"strings"

	"github.com/dchest/siphash"
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/symbol"
	"github.com/ren-lang/core/value"
)

// ErrVoidNotStorable is returned by Put when the caller supplies a
// void value directly. void is reserved internally to mark a deleted
// slot (spec.md Open Question: "the source permits it internally but
// rejects it at the API; preserve this distinction").
var ErrVoidNotStorable = errors.New("mapval: void may not be stored as a map value")

// ErrUnhashableKey is returned when a key's Kind carries no defined
// hash/equality rule.
var ErrUnhashableKey = errors.New("mapval: key kind is not hashable")

// Map is a MAP! value's backing store.
type Map struct {
	tbl      *symbol.Table
	pairs    *series.Series[value.Cell] // key, value, key, value, ...
	hashlist *series.Series[int32]      // 0 empty, -1 zombie, else pairIndex/2 + 1
	occ      int                        // live (non-zombie) key count
	k0, k1   uint64
}

// New creates an empty map. tbl is used to resolve word canons for
// case-insensitive key hashing/equality.
func New(tbl *symbol.Table) *Map {
	return &Map{
		tbl:      tbl,
		pairs:    series.Make[value.Cell](0),
		hashlist: series.FromSlice(make([]int32, 17)),
		k0:       0x9e3779b97f4a7c15,
		k1:       0xbf58476d1ce4e5b9,
	}
}

// Len returns the number of live (non-deleted) keys.
func (m *Map) Len() int { return m.occ }

func (m *Map) hashBytes(b []byte) uint64 {
	return siphash.Hash(m.k0, m.k1, b)
}

// hashKey computes a hash for key following spec.md §4.4's equality
// rule: words/strings hash case-insensitively, everything else
// hashes its exact bits. Returns an error for kinds with no defined
// hash rule (arrays, contexts, functions — reference-identity keys
// are out of this core's scope).
func (m *Map) hashKey(key value.Cell) (uint64, error) {
	switch {
	case key.Kind().IsWord():
		canon := m.tbl.Canon(key.Symbol())
		spelling, _ := m.tbl.Spelling(canon)
		return m.hashBytes([]byte(strings.ToLower(spelling))), nil
	case key.Kind() == value.KindString:
		s := key.ByteSeries()
		return m.hashBytes([]byte(strings.ToLower(string(s.Slice())))), nil
	case key.Kind() == value.KindBinary:
		return m.hashBytes(key.ByteSeries().Slice()), nil
	case key.Kind() == value.KindInteger:
		return m.hashBytes(int64ToBytes(key.Int())), nil
	case key.Kind() == value.KindLogic:
		if key.Logic() {
			return m.hashBytes([]byte{1}), nil
		}
		return m.hashBytes([]byte{0}), nil
	case key.Kind() == value.KindBlank:
		return m.hashBytes([]byte("blank")), nil
	default:
		return 0, ErrUnhashableKey
	}
}

// keysEqual applies the same kind-dispatched rule hashKey does: case-
// insensitive for words/strings, exact otherwise.
func (m *Map) keysEqual(a, b value.Cell) bool {
	if a.Kind().IsWord() && b.Kind().IsWord() {
		return m.tbl.SameCanon(a.Symbol(), b.Symbol())
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case value.KindString:
		return strings.EqualFold(string(a.ByteSeries().Slice()), string(b.ByteSeries().Slice()))
	case value.KindBinary:
		return string(a.ByteSeries().Slice()) == string(b.ByteSeries().Slice())
	case value.KindInteger:
		return a.Int() == b.Int()
	case value.KindLogic:
		return a.Logic() == b.Logic()
	case value.KindBlank:
		return true
	default:
		return false
	}
}

func int64ToBytes(n int64) []byte {
	b := make([]byte, 8)
	u := uint64(n)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return b
}

func probeStep(h uint64, tableLen int) (int, int) {
	idx := int(h % uint64(tableLen))
	step := int(h%uint64(tableLen-1)) + 1
	return idx, step
}

// lookupSlot returns the hashlist slot holding key's pair index, or
// the first empty-or-zombie slot a subsequent insert should use.
func (m *Map) lookupSlot(key value.Cell, h uint64) (slot int, pairIdx int, found bool) {
	n := m.hashlist.Len()
	idx, step := probeStep(h, n)
	for tries := 0; tries < n; tries++ {
		v := *m.hashlist.At(idx)
		if v == 0 {
			return idx, 0, false
		}
		if v > 0 {
			pi := int(v-1) * 2
			k := *m.pairs.At(pi)
			if !k.IsVoid() && m.keysEqual(k, key) {
				return idx, pi, true
			}
		}
		idx = (idx + step) % n
	}
	return -1, 0, false
}

func (m *Map) insertSlot(h uint64) int {
	n := m.hashlist.Len()
	idx, step := probeStep(h, n)
	for tries := 0; tries < n; tries++ {
		if *m.hashlist.At(idx) <= 0 {
			return idx
		}
		idx = (idx + step) % n
	}
	panic("mapval: hashlist full despite load-factor rehash")
}

// Get looks up key and returns its value, following the equality
// rule in hashKey/keysEqual.
func (m *Map) Get(key value.Cell) (value.Cell, bool) {
	h, err := m.hashKey(key)
	if err != nil {
		return value.Void(), false
	}
	_, pairIdx, found := m.lookupSlot(key, h)
	if !found {
		return value.Void(), false
	}
	return *m.pairs.At(pairIdx + 1), true
}

// Put inserts or overwrites the value stored for key. A new key's pair
// is appended to the pairlist; its hashlist entry may take over a
// zombie hashlist slot on the probe path, while the zombie pair itself
// is left for rehash to drop.
func (m *Map) Put(key, val value.Cell) error {
	if val.IsVoid() {
		return ErrVoidNotStorable
	}
	h, err := m.hashKey(key)
	if err != nil {
		return err
	}
	if _, pairIdx, found := m.lookupSlot(key, h); found {
		*m.pairs.At(pairIdx + 1) = val
		return nil
	}
	if (m.occ+1)*2 > m.hashlist.Len() {
		m.rehash()
		// hashlist length changed; recompute the insertion slot.
	}
	pairIdx := m.pairs.Len()
	if err := m.pairs.Extend(key, val); err != nil {
		return err
	}
	slot := m.insertSlot(h)
	*m.hashlist.At(slot) = int32(pairIdx/2) + 1
	m.occ++
	return nil
}

// Delete removes key, writing an internal void into its value slot
// and leaving the key itself as a zombie pair (spec.md §4.4: "the key
// is preserved as a zombie that may be overwritten by a later insert
// with a matching hash slot"). Reports whether key was present.
func (m *Map) Delete(key value.Cell) bool {
	h, err := m.hashKey(key)
	if err != nil {
		return false
	}
	slot, pairIdx, found := m.lookupSlot(key, h)
	if !found {
		return false
	}
	*m.pairs.At(pairIdx + 1) = value.Void()
	*m.hashlist.At(slot) = -1
	m.occ--
	return true
}

// Rehash grows the hashlist to the next prime at least twice its
// current size, walking the pairlist to rebuild it and compacting
// trailing zombie pairs, per spec.md §4.4's "rehash reconstructs the
// hashlist by walking the pairlist and compacts trailing zombies".
func (m *Map) Rehash() { m.rehash() }

func (m *Map) rehash() {
	newLen := nextPrime(m.hashlist.Len()*2 + 1)
	compacted := series.Make[value.Cell](0)
	for i := 0; i < m.pairs.Len(); i += 2 {
		k := *m.pairs.At(i)
		v := *m.pairs.At(i + 1)
		if v.IsVoid() {
			continue // trailing/interior zombie pair: drop during compaction
		}
		compacted.Extend(k, v)
	}
	m.pairs = compacted
	m.hashlist = series.FromSlice(make([]int32, newLen))
	m.occ = 0
	for i := 0; i < m.pairs.Len(); i += 2 {
		k := *m.pairs.At(i)
		h, err := m.hashKey(k)
		if err != nil {
			continue
		}
		slot := m.insertSlot(h)
		*m.hashlist.At(slot) = int32(i/2) + 1
		m.occ++
	}
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
