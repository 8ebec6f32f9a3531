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

package gc

import (
	"testing"

	"github.com/ren-lang/core/value"
)

func TestRecycleSweepsUnreachableSeries(t *testing.T) {
	c := New(1 << 20)
	root := c.NewCellSeries(2)
	root.SetRoot()
	orphan := c.NewCellSeries(2)
	_ = orphan

	stats := c.Recycle()
	if stats.SeriesFreed != 1 {
		t.Fatalf("expected 1 series freed, got %d", stats.SeriesFreed)
	}
	if c.CellSeriesPool().Live() != 1 {
		t.Fatalf("expected 1 live cell series after sweep, got %d", c.CellSeriesPool().Live())
	}
}

func TestGuardedCellKeepsChildArrayAlive(t *testing.T) {
	c := New(1 << 20)
	child := c.NewCellSeries(1)
	child.Extend(value.Integer(7))
	parent := c.NewCellSeries(1)
	parent.Extend(value.Array(value.KindBlock, child))

	holder := value.Array(value.KindBlock, parent)
	id := c.PushGuard(holder)
	defer c.PopGuard(id)

	stats := c.Recycle()
	if stats.SeriesFreed != 0 {
		t.Fatalf("expected guarded array and its child to survive, freed %d", stats.SeriesFreed)
	}
	if c.CellSeriesPool().Live() != 2 {
		t.Fatalf("expected both series still live, got %d", c.CellSeriesPool().Live())
	}
}

func TestRootContextMarksContainedCells(t *testing.T) {
	c := New(1 << 20)
	ctx := value.New(value.CtxObject, 1)
	c.SetRootContext(ctx)

	child := c.NewCellSeries(1)
	child.Extend(value.Integer(1))
	ctx.SetVar(1, value.Array(value.KindBlock, child))

	c.mark()
	if !ctx.VarlistSeries().Marked() {
		t.Fatalf("expected root context's varlist to be marked")
	}
	if !child.Marked() {
		t.Fatalf("expected child array reachable from root context to be marked")
	}
}

func TestRootSeriesSurvivesRegardlessOfReachability(t *testing.T) {
	c := New(1 << 20)
	orphan := c.NewCellSeries(1)
	orphan.SetRoot() // simulate a series the embedder marked root without tracing

	stats := c.Recycle()
	if stats.SeriesFreed != 0 {
		t.Fatalf("expected root-flagged series to survive sweep, freed %d", stats.SeriesFreed)
	}
}
