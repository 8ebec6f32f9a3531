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

// Package gc implements the non-incremental, non-moving,
// mark-and-sweep collector (spec.md §4.5) over the series and
// context graph. It owns the pools that hand out series nodes and
// context nodes, so that Sweep can reclaim exactly the nodes the
// mark phase failed to reach.
package gc

import (
	"github.com/ren-lang/core/pool"
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/value"
)

// RootProvider supplies a collector with a task's evaluator-stack
// roots (spec.md §4.5: "task-local evaluator stack frames (all
// out-cells, arg cells, live series)"). eval.Evaluator implements it;
// Collector only depends on the interface so gc has no import-cycle
// onto eval.
type RootProvider interface {
	GCRoots() []value.Cell
}

// Collector owns every pool of series/context nodes that participate
// in collection, plus the explicit root sets spec.md §4.5 names.
type Collector struct {
	contexts *pool.Pool[value.Context]
	cellSer  *pool.Pool[series.Series[value.Cell]]
	byteSer  *pool.Pool[series.Series[byte]]
	wideSer  *pool.Pool[series.Series[uint16]]
	keySer   *pool.Pool[series.Series[value.KeyEntry]]

	ballast *pool.Ballast

	rootCtx  *value.Context
	guarded  []value.Cell
	roots    map[int]RootProvider
	nextRoot int

	stats Stats
}

// Stats summarizes the outcome of the most recent Recycle call as
// counts of reclaimed nodes; it does not measure bytes in use.
type Stats struct {
	SeriesFreed   int
	ContextsFreed int
}

// New creates a collector with empty pools and a ballast of
// ballastSize bytes. Recycle resets the ballast; the collector itself
// never checks Ballast().Due() and never calls Recycle on its own.
func New(ballastSize int64) *Collector {
	return &Collector{
		contexts: pool.New[value.Context](0),
		cellSer:  pool.New[series.Series[value.Cell]](0),
		byteSer:  pool.New[series.Series[byte]](0),
		wideSer:  pool.New[series.Series[uint16]](0),
		keySer:   pool.New[series.Series[value.KeyEntry]](0),
		ballast:  pool.NewBallast(ballastSize),
		roots:    make(map[int]RootProvider),
	}
}

// SetRootContext registers the single unconditional root context
// (spec.md: "registered 'root context' (a varlist whose cells are
// rooted)").
func (c *Collector) SetRootContext(ctx *value.Context) { c.rootCtx = ctx }

// PushGuard pushes v onto the explicit guard stack (spec.md: "the
// 'guarded' stack: explicit push/pop API used around temporaries
// that would otherwise be orphaned") and returns a token identifying
// its position for PopGuard.
func (c *Collector) PushGuard(v value.Cell) int {
	c.guarded = append(c.guarded, v)
	return len(c.guarded) - 1
}

// PopGuard pops the guard stack back down to (and including) id.
func (c *Collector) PopGuard(id int) {
	if id < 0 || id > len(c.guarded) {
		panic("gc: PopGuard out of range")
	}
	c.guarded = c.guarded[:id]
}

// AddRootProvider registers a task's evaluator-stack root source and
// returns a token for RemoveRootProvider.
func (c *Collector) AddRootProvider(p RootProvider) int {
	id := c.nextRoot
	c.nextRoot++
	c.roots[id] = p
	return id
}

// RemoveRootProvider unregisters a root provider, e.g. when its task
// has shut down.
func (c *Collector) RemoveRootProvider(id int) { delete(c.roots, id) }

// Ballast exposes the tracked-byte countdown so callers can route
// series-buffer accounting through it (e.g. at ExpandTail time) and
// ask Due() before invoking Recycle.
func (c *Collector) Ballast() *pool.Ballast { return c.ballast }

// ContextPool, CellSeriesPool, ByteSeriesPool, WideSeriesPool, and
// KeySeriesPool expose the collector's node pools so higher layers
// (package interp) can allocate managed nodes from them rather than
// plain Go `new`, which is what makes them reachable by Sweep.
func (c *Collector) ContextPool() *pool.Pool[value.Context]                { return c.contexts }
func (c *Collector) CellSeriesPool() *pool.Pool[series.Series[value.Cell]] { return c.cellSer }
func (c *Collector) ByteSeriesPool() *pool.Pool[series.Series[byte]]      { return c.byteSer }
func (c *Collector) WideSeriesPool() *pool.Pool[series.Series[uint16]]    { return c.wideSer }
func (c *Collector) KeySeriesPool() *pool.Pool[series.Series[value.KeyEntry]] {
	return c.keySer
}

// NewCellSeries allocates a managed, pool-backed array series ready
// for use as a block/group/path body. Allocating through the
// collector (rather than series.Make) is what makes the series
// reachable by Sweep.
func (c *Collector) NewCellSeries(capacity int) *series.Series[value.Cell] {
	s := c.cellSer.Alloc()
	s.Reset(capacity)
	s.Manage()
	return s
}

// NewByteSeries allocates a managed, pool-backed byte series for a
// STRING! or BINARY! value.
func (c *Collector) NewByteSeries(capacity int) *series.Series[byte] {
	s := c.byteSer.Alloc()
	s.Reset(capacity)
	s.Manage()
	return s
}

// NewWideSeries allocates a managed, pool-backed wide-string series.
func (c *Collector) NewWideSeries(capacity int) *series.Series[uint16] {
	s := c.wideSer.Alloc()
	s.Reset(capacity)
	s.Manage()
	return s
}

// NewKeySeries allocates a managed, pool-backed keylist series.
func (c *Collector) NewKeySeries(capacity int) *series.Series[value.KeyEntry] {
	s := c.keySer.Alloc()
	s.Reset(capacity)
	s.Manage()
	return s
}

// Recycle runs one full mark-and-sweep cycle: mark every series/
// context reachable from the three root sets, then sweep every pool,
// freeing anything left unmarked. It always runs to completion
// (spec.md: "Cancellation/timeout: not applicable; GC runs to
// completion").
func (c *Collector) Recycle() Stats {
	c.mark()
	stats := c.sweep()
	c.ballast.Reset()
	c.stats = stats
	return stats
}

// LastStats returns the Stats from the most recent Recycle call.
func (c *Collector) LastStats() Stats { return c.stats }

func (c *Collector) mark() {
	if c.rootCtx != nil {
		c.markContext(c.rootCtx)
	}
	for _, v := range c.guarded {
		c.markCell(v)
	}
	for _, rp := range c.roots {
		for _, v := range rp.GCRoots() {
			c.markCell(v)
		}
	}
}

// markContext marks a context's varlist and keylist series and
// recurses into every variable cell, per spec.md's "word cells mark
// their bound context". The varlist's mark bit doubles as the
// already-visited check that makes self-referential contexts (every
// context's slot 0 points back to itself) cycle-safe.
func (c *Collector) markContext(ctx *value.Context) {
	if ctx == nil {
		return
	}
	vl := ctx.VarlistSeries()
	if vl.Marked() {
		return
	}
	vl.SetMarked()
	ctx.KeylistSeries().SetMarked()
	for i := 0; i < vl.Len(); i++ {
		cell, err := ctx.Var(i)
		if err != nil {
			continue
		}
		c.markCell(*cell)
	}
}

// markCell marks whatever series/context a cell references,
// dispatching on Kind as spec.md §4.5 describes: "arrays recurse
// into element cells; word cells mark their bound context; function
// cells mark paramlist and body-holder".
func (c *Collector) markCell(v value.Cell) {
	k := v.Kind()
	switch {
	case k.IsArray():
		s := v.ArraySeries()
		if s == nil || s.Marked() {
			return
		}
		s.SetMarked()
		for i := 0; i < s.Len(); i++ {
			c.markCell(*s.At(i))
		}
	case k == value.KindString && !v.IsWide():
		if s := v.ByteSeries(); s != nil {
			s.SetMarked()
		}
	case k == value.KindString && v.IsWide():
		if s := v.WideSeries(); s != nil {
			s.SetMarked()
		}
	case k == value.KindBinary:
		if s := v.ByteSeries(); s != nil {
			s.SetMarked()
		}
	case k.IsWord():
		b := v.Binding()
		if b.IsAbsolute() {
			c.markContext(b.Context())
		}
	case k.IsContext():
		c.markContext(v.ContextValue())
	case k == value.KindFunction:
		fn := v.FunctionValue()
		if fn == nil {
			return
		}
		c.markContext(fn.Paramlist)
		if fn.Body != nil && !fn.Body.Marked() {
			fn.Body.SetMarked()
			for i := 0; i < fn.Body.Len(); i++ {
				c.markCell(*fn.Body.At(i))
			}
		}
	}
}

// sweep walks every pool's live nodes, reclaiming every managed,
// unmarked one, and clears the mark bit of every survivor so the
// next Recycle starts from a clean slate (spec.md testable property
// 1: "after sweep, marked = 0 for all S").
func (c *Collector) sweep() Stats {
	var stats Stats
	c.cellSer.Sweep(func(s *series.Series[value.Cell]) bool {
		return sweepSeries(s, &stats.SeriesFreed)
	})
	c.byteSer.Sweep(func(s *series.Series[byte]) bool {
		return sweepSeries(s, &stats.SeriesFreed)
	})
	c.wideSer.Sweep(func(s *series.Series[uint16]) bool {
		return sweepSeries(s, &stats.SeriesFreed)
	})
	c.keySer.Sweep(func(s *series.Series[value.KeyEntry]) bool {
		return sweepSeries(s, &stats.SeriesFreed)
	})
	c.contexts.Sweep(func(ctx *value.Context) bool {
		keep := !ctx.VarlistSeries().Managed() || ctx.VarlistSeries().Root() || ctx.VarlistSeries().Marked()
		if keep {
			ctx.VarlistSeries().ClearMarked()
			ctx.KeylistSeries().ClearMarked()
			return true
		}
		stats.ContextsFreed++
		return false
	})
	return stats
}

// sweepSeries reports whether s survives this sweep (kept == true),
// clearing its mark bit if so. Unmanaged or Root series are always
// kept regardless of mark state, matching spec.md's "series with the
// root flag" root set and the "unmanaged series must be freed
// explicitly by their creator" rule.
func sweepSeries[T any](s *series.Series[T], freed *int) bool {
	if !s.Managed() || s.Root() {
		s.ClearMarked()
		return true
	}
	if s.Marked() {
		s.ClearMarked()
		return true
	}
	*freed++
	return false
}
