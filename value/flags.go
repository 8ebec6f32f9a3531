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

// Flags are the cell-level bits orthogonal to Kind, per spec.md §3.
type Flags uint8

const (
	// LineMarker records that a newline preceded this cell in the
	// original source; cosmetic, consumed only by a molder.
	LineMarker Flags = 1 << iota
	// Evaluated marks a cell as the product of evaluation, as
	// opposed to a literal value fetched inertly.
	Evaluated
	// Enfix marks a function cell as left-gathering ("lookback"):
	// dispatch takes its first argument from the value already
	// computed to its left.
	Enfix
	// Thrown marks a cell carrying a non-local exit. A thrown
	// cell may exist only transiently in an evaluator's out slot
	// or a task-local save slot; it must never be stored into an
	// aggregate (array, context variable slot, or map).
	Thrown
)
