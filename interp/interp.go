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

// Package interp implements the embedding API spec.md §6.1 names:
// init_core/shutdown_core, init_task/shutdown_task, make_series/
// manage/push_guard/pop_guard/recycle, do_array, apply, and
// push_trap/drop_trap. It is the single handle spec.md §9's redesign
// note asks for ("encapsulate global state in an Interpreter value
// owned by the embedder") — everything package boot assembles
// (symbol table, collector, evaluator, root context, natives) is
// reached through the Interpreter methods below; Driver hands out the
// underlying boot.Driver where those methods do not cover a need.
package interp

import (
	"context"
	"fmt"

	"github.com/ren-lang/core/bind"
	"github.com/ren-lang/core/boot"
	"github.com/ren-lang/core/gc"
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/unwind"
	"github.com/ren-lang/core/value"
)

// Interpreter is the embedder's handle onto one booted core plus its
// current task.
type Interpreter struct {
	driver *boot.Driver
	task   *boot.Task
}

// InitCore runs the full bootstrap (spec.md §6.1 init_core) and
// panics on failure: an embedding host has no meaningful way to
// recover from a boot image that fails to decompress or verify, so
// spec.md requires init_core to panic rather than return an error.
func InitCore(manifest boot.Manifest) *Interpreter {
	d, err := boot.InitCore(manifest)
	if err != nil {
		panic(fmt.Sprintf("interp: init_core: %v", err))
	}
	return &Interpreter{driver: d}
}

// ShutdownCore drains the wrapped Driver's state (spec.md §6.1
// shutdown_core). This core's debug build has no separate leak
// counter to assert against beyond what Recycle's Stats already
// reports; callers wanting that check should read Recycle's result
// before calling ShutdownCore.
func (ip *Interpreter) ShutdownCore() {
	ip.driver.ShutdownCore()
}

// InitTask starts a new cooperative task (spec.md §6.1 init_task).
// This core runs one evaluator per Driver (spec.md §1 excludes
// multithreading), so InitTask's only job is to stamp a fresh task
// identity; it does not allocate a second call stack.
func (ip *Interpreter) InitTask() {
	ip.task = ip.driver.InitTask()
}

// ShutdownTask retires the current task (spec.md §6.1 shutdown_task).
func (ip *Interpreter) ShutdownTask() {
	if ip.task == nil {
		return
	}
	ip.driver.ShutdownTask(ip.task)
	ip.task = nil
}

// MakeSeries allocates a pool-backed cell-width array (spec.md §6.1
// make_series) through the collector, which is what makes the result
// reachable by Sweep once it is rooted.
func (ip *Interpreter) MakeSeries(capacity int) *series.Series[value.Cell] {
	return ip.driver.Collector().NewCellSeries(capacity)
}

// Manage transitions s from unmanaged to GC-owned (spec.md §6.1
// manage). A series built via MakeSeries is already collector-backed.
// Manage only sets the managed flag: a series built by other means
// (e.g. series.FromSlice) is not in any collector pool, and Sweep,
// which walks only pool nodes, never reclaims it.
func (ip *Interpreter) Manage(s *series.Series[value.Cell]) {
	s.Manage()
}

// PushGuard and PopGuard expose the collector's explicit guard stack
// (spec.md §6.1 push_guard/pop_guard): the embedder's way to protect
// a temporary cell across an allocation that might trigger Recycle
// before the temporary is reachable from any other root.
func (ip *Interpreter) PushGuard(v value.Cell) int { return ip.driver.Collector().PushGuard(v) }
func (ip *Interpreter) PopGuard(id int)            { ip.driver.Collector().PopGuard(id) }

// Recycle runs a full mark-and-sweep pass (spec.md §6.1 recycle) and
// returns the series/context counts it reclaimed.
func (ip *Interpreter) Recycle() gc.Stats {
	return ip.driver.Collector().Recycle()
}

// DoArray runs the evaluator over arr starting at index against spec
// (spec.md §6.1 do_array), returning the resulting Outcome in place of
// the historical out-parameter-plus-indexor-return shape: Outcome
// already carries "value produced", "error raised", or "thrown",
// which subsumes do_array's END_FLAG/THROWN_FLAG sentinels without a
// separate indexor type (see DESIGN.md).
//
// ctx is checked once before the run starts, the one halt-flag poll
// point this core's single-threaded, non-preemptive evaluator offers
// a host per "dose" (spec.md §2's cooperative concurrency model: a
// native already in progress cannot be interrupted mid-expression).
func (ip *Interpreter) DoArray(ctx context.Context, arr *series.Series[value.Cell], index int, spec bind.Specifier) unwind.Outcome {
	if err := ctx.Err(); err != nil {
		return unwind.Fail(fmt.Errorf("interp: do_array: %w", err))
	}
	return ip.driver.Evaluator().DoArray(arr, index, spec)
}

// Apply invokes fnCell directly against args, bypassing do_array's
// source-scanning entirely (spec.md §6.1 `apply(out, function,
// args…, END)`). Go's variadic args slice plays the role of the
// historical null-terminated argument list; there is no sentinel
// value to pass because len(args) is already exact.
func (ip *Interpreter) Apply(ctx context.Context, fnCell value.Cell, args ...value.Cell) (value.Cell, error) {
	if err := ctx.Err(); err != nil {
		return value.Cell{}, fmt.Errorf("interp: apply: %w", err)
	}
	if fnCell.Kind() != value.KindFunction {
		return value.Cell{}, fmt.Errorf("interp: apply requires a function! value, got kind %s", fnCell.Kind())
	}
	spec := bind.Specifier{Frame: ip.driver.RootContext()}
	oc := ip.driver.Evaluator().Apply(fnCell.FunctionValue(), args, spec)
	switch {
	case oc.IsValue():
		return oc.Value, nil
	case oc.IsError():
		return value.Cell{}, oc.Err
	default:
		return value.Cell{}, fmt.Errorf("interp: apply: uncaught throw")
	}
}

// Native looks up one of the booted natives by name, for hosts that
// want to Apply a known native (as this package's tests do) without
// first scanning and binding a word to find it.
func (ip *Interpreter) Native(name string) (value.Cell, bool) {
	fn, ok := ip.driver.Native(name)
	if !ok {
		return value.Cell{}, false
	}
	return value.FunctionCell(fn), true
}

// PushTrap and DropTrap open and close a trap boundary (spec.md §6.1
// push_trap/drop_trap), sharing the same unwind.Tracker the boot
// natives TRAP and CATCH push and drop against, so every open
// boundary — whether opened by source-level TRAP/CATCH or directly by
// an embedding host — balances against the same ledger.
func (ip *Interpreter) PushTrap() int {
	ev := ip.driver.Evaluator()
	return ip.driver.Tracker().Push(unwind.State{FrameStackTop: ev.FrameDepth(), GuardedDepth: ev.GuardDepth()})
}

func (ip *Interpreter) DropTrap(id int) {
	ev := ip.driver.Evaluator()
	ip.driver.Tracker().Drop(id, unwind.State{FrameStackTop: ev.FrameDepth(), GuardedDepth: ev.GuardDepth()})
}

// Driver exposes the wrapped boot.Driver for callers (tests, cmd/
// rencore) that need lower-level access the embedding API above does
// not cover, e.g. RootContext for binding freshly scanned words.
func (ip *Interpreter) Driver() *boot.Driver { return ip.driver }
