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

package symbol

import "testing"

func TestInternIsCaseSensitiveIdentityCaseInsensitiveCanon(t *testing.T) {
	tbl := New()
	foo := tbl.InternString("foo")
	Foo := tbl.InternString("Foo")
	FOO := tbl.InternString("FOO")
	if foo == Foo || Foo == FOO {
		t.Fatalf("distinct-case spellings must intern to distinct IDs")
	}
	if !tbl.SameCanon(foo, Foo) || !tbl.SameCanon(Foo, FOO) {
		t.Fatalf("distinct-case spellings of the same word must share a canon")
	}
	bar := tbl.InternString("bar")
	if tbl.SameCanon(foo, bar) {
		t.Fatalf("unrelated spellings must not share a canon")
	}
}

func TestInternIsIdempotent(t *testing.T) {
	tbl := New()
	a := tbl.InternString("hello")
	b := tbl.InternString("hello")
	if a != b {
		t.Fatalf("re-interning the same spelling must return the same ID")
	}
}

func TestRehashPreservesLookup(t *testing.T) {
	tbl := New()
	ids := make(map[string]ID)
	for i := 0; i < 500; i++ {
		s := randomLikeSpelling(i)
		ids[s] = tbl.InternString(s)
	}
	for s, id := range ids {
		if got := tbl.InternString(s); got != id {
			t.Fatalf("spelling %q: expected id %d after rehash, got %d", s, id, got)
		}
	}
}

func TestForgetAndReassignCanon(t *testing.T) {
	tbl := New()
	a := tbl.InternString("Word")
	b := tbl.InternString("word")
	if tbl.Canon(a) != a {
		t.Fatalf("first-interned spelling of a class should start as its own canon")
	}
	tbl.Forget(a)
	if tbl.Live(a) {
		t.Fatalf("expected a to be forgotten")
	}
	tbl.ReassignCanon(a, b)
	if tbl.Canon(b) != b {
		t.Fatalf("expected reassigned canon")
	}
	// Re-interning the forgotten exact spelling should mint a fresh entry.
	c := tbl.InternString("Word")
	if c == a {
		t.Fatalf("expected a fresh ID after forgetting the original")
	}
}

func randomLikeSpelling(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 3+(i%5))
	for j := range b {
		b[j] = letters[(i*7+j*13)%len(letters)]
	}
	return string(b)
}
