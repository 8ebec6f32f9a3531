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

package interp

import (
	"context"
	"testing"

	"github.com/ren-lang/core/bind"
	"github.com/ren-lang/core/boot"
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/value"
)

func mustInterp(t *testing.T) *Interpreter {
	t.Helper()
	ip := InitCore(boot.DefaultManifest())
	ip.InitTask()
	return ip
}

func word(ip *Interpreter, kind value.Kind, name string) value.Cell {
	d := ip.Driver()
	sym := d.SymbolTable().InternString(name)
	idx, ok := d.RootContext().Find(sym)
	if !ok {
		idx, _ = d.RootContext().Add(sym, 0)
	}
	c := value.Word(kind, sym)
	bind.BindAbsolute(&c, d.RootContext(), idx)
	return c
}

func block(cells ...value.Cell) *series.Series[value.Cell] {
	s := series.Make[value.Cell](len(cells))
	s.Extend(cells...)
	return s
}

// TestDoArrayRunsEnfixArithmetic exercises do_array (spec.md §6.1)
// through the Interpreter handle rather than directly against
// boot.Driver, covering the same left-to-right scenario (a) property.
func TestDoArrayRunsEnfixArithmetic(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	arr := block(value.Integer(1), word(ip, value.KindWord, "+"), value.Integer(2), word(ip, value.KindWord, "*"), value.Integer(3))

	oc := ip.DoArray(context.Background(), arr, 0, bind.Specifier{Frame: ip.Driver().RootContext()})
	if !oc.IsValue() {
		t.Fatalf("expected a value outcome, got %+v", oc)
	}
	if got := oc.Value.Int(); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

// TestDoArrayHonorsCanceledContext covers the halt-flag poll point
// DoArray offers a host: a context canceled before the call starts
// aborts immediately rather than running the array.
func TestDoArrayHonorsCanceledContext(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	arr := block(value.Integer(1))
	oc := ip.DoArray(ctx, arr, 0, bind.Specifier{Frame: ip.Driver().RootContext()})
	if !oc.IsError() {
		t.Fatalf("expected a canceled context to surface as an error outcome, got %+v", oc)
	}
}

// TestApplyInvokesNativeDirectly covers apply (spec.md §6.1): calling
// the "+" native with already-evaluated argument cells, bypassing
// do_array's source-array scan entirely.
func TestApplyInvokesNativeDirectly(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	plus, ok := ip.Native("+")
	if !ok {
		t.Fatalf("expected a + native to be installed")
	}
	got, err := ip.Apply(context.Background(), plus, value.Integer(4), value.Integer(5))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Int() != 9 {
		t.Fatalf("expected 9, got %d", got.Int())
	}
}

// TestApplyRejectsNonFunction covers Apply's argument-shape check: a
// non-FUNCTION! cell cannot be applied.
func TestApplyRejectsNonFunction(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	if _, err := ip.Apply(context.Background(), value.Integer(1)); err == nil {
		t.Fatalf("expected an error applying a non-function value")
	}
}

// TestPushTrapDropTrapBalance covers push_trap/drop_trap (spec.md
// §6.1): a boundary opened and immediately dropped with nothing run
// in between balances cleanly; a mismatched id panics, matching
// unwind.Tracker's own fatal-on-imbalance contract.
func TestPushTrapDropTrapBalance(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	id := ip.PushTrap()
	ip.DropTrap(id)
}

func TestPushTrapDropTrapImbalancePanics(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected dropping an already-closed trap id to panic")
		}
	}()
	id := ip.PushTrap()
	ip.DropTrap(id)
	ip.DropTrap(id)
}

// TestRecycleViaInterpreter covers recycle (spec.md §6.1) through the
// Interpreter handle.
func TestRecycleViaInterpreter(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	for i := 0; i < 1000; i++ {
		s := ip.MakeSeries(4)
		s.Extend(value.Integer(int64(i)))
	}
	stats := ip.Recycle()
	if stats.SeriesFreed == 0 {
		t.Fatalf("expected Recycle to free the unreachable temporary series")
	}
}

// TestPushGuardPopGuardRoundTrip covers push_guard/pop_guard
// (spec.md §6.1): a guarded value survives Recycle even though
// nothing else roots it.
func TestPushGuardPopGuardRoundTrip(t *testing.T) {
	ip := mustInterp(t)
	defer ip.ShutdownTask()
	s := ip.MakeSeries(1)
	s.Extend(value.Integer(42))
	guarded := value.Array(value.KindBlock, s)

	id := ip.PushGuard(guarded)
	if stats := ip.Recycle(); stats.SeriesFreed != 0 {
		t.Fatalf("expected the guarded series to survive Recycle, freed %d", stats.SeriesFreed)
	}
	ip.PopGuard(id)
}
