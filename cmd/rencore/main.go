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

// Command rencore is a minimal demo host: it boots the core and runs
// spec.md §8's end-to-end scenarios literally, printing each result.
// It is thin by design, matching the teacher's own cmd/ executables
// (flag-parsed, delegating straight to library packages) — all of the
// actual work happens in package interp and package boot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/ren-lang/core/bind"
	"github.com/ren-lang/core/boot"
	"github.com/ren-lang/core/interp"
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/value"
)

func main() {
	bootLevel := flag.String("boot-level", "full", "boot level: base, sys, or full")
	trace := flag.Bool("trace", false, "set the boot manifest's trace_eval field (the evaluator does not read it)")
	flag.Parse()

	manifest := boot.DefaultManifest()
	manifest.BootLevel = *bootLevel
	manifest.TraceEval = *trace

	ip := interp.InitCore(manifest)
	defer ip.ShutdownCore()
	ip.InitTask()
	defer ip.ShutdownTask()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGINT/SIGTERM flip the halt flag DoArray polls at its one
	// cooperative-cancellation point (see interp.DoArray); this core's
	// evaluator cannot be preempted, so a DoArray call already running
	// finishes its whole array; the next scenario's DoArray then
	// reports the cancellation.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "rencore: halt requested")
		cancel()
	}()

	runScenarios(ctx, ip)
}

// env bundles the Interpreter with the word/block-building helpers
// every scenario below needs to assemble its literal input.
type env struct {
	ip *interp.Interpreter
}

func (e env) word(kind value.Kind, name string) value.Cell {
	d := e.ip.Driver()
	sym := d.SymbolTable().InternString(name)
	idx, ok := d.RootContext().Find(sym)
	if !ok {
		idx, _ = d.RootContext().Add(sym, 0)
	}
	c := value.Word(kind, sym)
	bind.BindAbsolute(&c, d.RootContext(), idx)
	return c
}

func (e env) block(cells ...value.Cell) *series.Series[value.Cell] {
	s := series.Make[value.Cell](len(cells))
	s.Extend(cells...)
	return s
}

func (e env) spec() bind.Specifier {
	return bind.Specifier{Frame: e.ip.Driver().RootContext()}
}

// formatCell gives just enough of a human-readable rendering for this
// demo's own result kinds; a general molder is out of scope (spec.md
// §1), so this does not attempt to print arbitrary cell kinds.
func formatCell(c value.Cell) string {
	switch c.Kind() {
	case value.KindInteger:
		return fmt.Sprintf("%d", c.Int())
	case value.KindString:
		return fmt.Sprintf("%q", string(c.ByteSeries().Slice()))
	case value.KindLogic:
		return fmt.Sprintf("%t", c.Logic())
	case value.KindError:
		return "an error! value"
	case value.KindFunction:
		return "a function! value"
	default:
		return fmt.Sprintf("<%s>", c.Kind())
	}
}

func (e env) run(ctx context.Context, arr *series.Series[value.Cell]) {
	oc := e.ip.DoArray(ctx, arr, 0, e.spec())
	switch {
	case oc.IsValue():
		fmt.Printf("  => %s\n", formatCell(oc.Value))
	case oc.IsError():
		fmt.Printf("  => error: %v\n", oc.Err)
	default:
		fmt.Printf("  => uncaught throw\n")
	}
}

// runScenarios evaluates spec.md §8's end-to-end scenarios (a)-(g) in
// order, printing each result as it goes.
func runScenarios(ctx context.Context, ip *interp.Interpreter) {
	e := env{ip: ip}

	fmt.Println("scenario (a): 1 + 2 * 3")
	e.run(ctx, e.block(value.Integer(1), e.word(value.KindWord, "+"), value.Integer(2), e.word(value.KindWord, "*"), value.Integer(3)))

	fmt.Println(`scenario (b): either 1 = 1 ["yes"] ["no"]`)
	yes := value.ArrayAt(value.KindBlock, e.block(value.String(series.FromSlice([]byte("yes")))), 0)
	no := value.ArrayAt(value.KindBlock, e.block(value.String(series.FromSlice([]byte("no")))), 0)
	e.run(ctx, e.block(e.word(value.KindWord, "either"), value.Integer(1), e.word(value.KindWord, "="), value.Integer(1), yes, no))

	fmt.Println("scenario (c): do [x: 10  x + 5]")
	inner := e.block(e.word(value.KindSetWord, "x"), value.Integer(10), e.word(value.KindWord, "x"), e.word(value.KindWord, "+"), value.Integer(5))
	e.run(ctx, e.block(e.word(value.KindWord, "do"), value.ArrayAt(value.KindBlock, inner, 0)))

	fmt.Println("scenario (d): trap [1 / 0]")
	divBody := e.block(value.Integer(1), e.word(value.KindWord, "/"), value.Integer(0))
	e.run(ctx, e.block(e.word(value.KindWord, "trap"), value.ArrayAt(value.KindBlock, divBody, 0)))

	fmt.Println("scenario (e): catch [throw 42]")
	throwBody := e.block(e.word(value.KindWord, "throw"), value.Integer(42))
	e.run(ctx, e.block(e.word(value.KindWord, "catch"), value.ArrayAt(value.KindBlock, throwBody, 0)))

	fmt.Println("scenario (f): f: func [x] [return x + 1]  f 41")
	xSym := ip.Driver().SymbolTable().InternString("x")
	returnBody := e.block(e.word(value.KindWord, "return"), value.Word(value.KindWord, xSym), e.word(value.KindWord, "+"), value.Integer(1))
	specBlock := value.ArrayAt(value.KindBlock, e.block(value.Word(value.KindWord, xSym)), 0)
	bodyBlock := value.ArrayAt(value.KindBlock, returnBody, 0)
	e.run(ctx, e.block(e.word(value.KindSetWord, "f"), e.word(value.KindWord, "func"), specBlock, bodyBlock))
	e.run(ctx, e.block(e.word(value.KindWord, "f"), value.Integer(41)))

	fmt.Println("scenario (g): recycle after 10,000 temporary arrays")
	for i := 0; i < 10000; i++ {
		s := ip.MakeSeries(4)
		s.Extend(value.Integer(int64(i)))
	}
	stats := ip.Recycle()
	fmt.Printf("  => recycled %d series, %d contexts\n", stats.SeriesFreed, stats.ContextsFreed)
}
