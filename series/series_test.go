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

package series

import "testing"

func TestExtendAndTerminate(t *testing.T) {
	s := Make[byte](2)
	if err := s.Extend('a', 'b', 'c'); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected len 3, got %d", s.Len())
	}
	if string(s.Slice()) != "abc" {
		t.Fatalf("expected 'abc', got %q", s.Slice())
	}
	if s.data[s.Len()] != 0 {
		t.Fatalf("expected zero terminator past len, got %q", s.data[s.Len()])
	}
}

func TestLockedRejectsMutation(t *testing.T) {
	s := Make[int](4)
	s.Extend(1, 2, 3)
	s.Lock()
	if err := s.Extend(4); err == nil {
		t.Fatalf("expected locked error")
	}
	if err := s.ExpandTail(1); err == nil {
		t.Fatalf("expected locked error")
	}
}

func TestFixedSizeRejectsLengthChange(t *testing.T) {
	s := Make[int](4)
	s.Extend(1, 2, 3)
	s.SetFixedSize()
	if err := s.ExpandTail(1); err == nil {
		t.Fatalf("expected fixed-size error")
	}
	*s.At(0) = 100
	if s.Slice()[0] != 100 {
		t.Fatalf("expected in-place mutation to succeed on fixed-size series")
	}
}

func TestManageIsOneWay(t *testing.T) {
	s := Make[int](1)
	if s.Managed() {
		t.Fatalf("fresh series should be unmanaged")
	}
	s.Manage()
	if !s.Managed() {
		t.Fatalf("expected series to be managed")
	}
}

func TestGrowReallocatesGeometrically(t *testing.T) {
	s := Make[int](1)
	for i := 0; i < 1000; i++ {
		s.Extend(i)
	}
	if s.Len() != 1000 {
		t.Fatalf("expected len 1000, got %d", s.Len())
	}
	for i := 0; i < 1000; i++ {
		if s.Slice()[i] != i {
			t.Fatalf("element %d corrupted: got %d", i, s.Slice()[i])
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := Make[int](4)
	s.Extend(1, 2, 3)
	c := s.Clone()
	*c.At(0) = 99
	if s.Slice()[0] != 1 {
		t.Fatalf("mutating clone should not affect original")
	}
}

func TestMarkedIsClearedIndependently(t *testing.T) {
	s := Make[int](1)
	s.SetRoot()
	if s.Marked() {
		t.Fatalf("fresh series should not be marked")
	}
	s.SetMarked()
	if !s.Marked() || !s.Root() {
		t.Fatalf("expected marked and root flags to coexist")
	}
	s.ClearMarked()
	if s.Marked() {
		t.Fatalf("expected mark bit cleared")
	}
	if !s.Root() {
		t.Fatalf("clearing mark should not clear unrelated flags")
	}
}
