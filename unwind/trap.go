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

package unwind

import "fmt"

// State is the save/restore snapshot a TRAP/CATCH boundary captures
// (spec.md §4.7): every counter that must return to exactly its
// pushed value once the boundary drops. A longjmp-based trap from
// the historical source becomes, here, nothing more than "every
// evaluator entry point returns an Outcome, and Tracker asserts the
// counters balance" (spec.md §9's redesign note for traps).
type State struct {
	DataStackPtr  int
	FrameStackTop int
	MoldBufferLen int
	GuardedDepth  int
	ManualsDepth  int
}

// Tracker is the interpreter's trap stack: the sequence of
// currently-open TRAP/CATCH boundaries, innermost last.
type Tracker struct {
	stack []State
}

// NewTracker returns an empty trap stack.
func NewTracker() *Tracker { return &Tracker{} }

// Push records a new trap boundary's snapshot and returns its id,
// which must be passed back to Drop. Ids are stack positions: they
// are only valid while no outer Drop has already popped past them.
func (t *Tracker) Push(s State) int {
	t.stack = append(t.stack, s)
	return len(t.stack) - 1
}

// Depth returns the number of currently open trap boundaries.
func (t *Tracker) Depth() int { return len(t.stack) }

// Drop closes the trap boundary identified by id, asserting that
// it is the innermost open boundary and that `current` exactly
// matches the state captured at the matching Push. Either
// violation is a core invariant failure (spec.md §4.7: "Any
// imbalance at drop-time is a bug (asserted)") and panics rather
// than returning an error, matching spec.md §7's classification of
// layout-invariant violations as fatal.
func (t *Tracker) Drop(id int, current State) {
	if id != len(t.stack)-1 {
		panic(fmt.Sprintf("unwind: trap stack imbalance: dropping id %d but innermost open trap is %d", id, len(t.stack)-1))
	}
	saved := t.stack[id]
	t.stack = t.stack[:id]
	if saved != current {
		panic(fmt.Sprintf("unwind: trap state mismatch at drop: pushed %+v, dropped %+v", saved, current))
	}
}

// UnwindTo pops trap boundary id and every boundary opened after it,
// discarding their snapshots without comparison, so Depth() == id
// afterward. It is the bulk alternative to the one-at-a-time Drop
// sequence; no native in this module calls it.
func (t *Tracker) UnwindTo(id int) {
	if id < 0 || id > len(t.stack) {
		panic("unwind: UnwindTo out of range")
	}
	t.stack = t.stack[:id]
}
