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

// Package eval implements Do_Core (spec.md §4.6): the stack-frame
// evaluator that walks an array of cells, performing prefix and
// enfix function dispatch, argument gathering by parameter
// convention, and reporting its result as an unwind.Outcome rather
// than a bare value, so every call site composes with the throw/trap
// protocol (spec.md §4.7) uniformly.
//
// Frames chain implicitly through Go's own call stack — DoArray,
// doNext, and dispatch recurse into one another exactly the way
// nested evaluations nest in the source language. Evaluator keeps an
// explicit slice of *CallFrame in parallel purely so the collector
// can enumerate "task-local evaluator stack frames" as GC roots
// (spec.md §4.5) without walking Go's native stack.
package eval

import (
	"github.com/ren-lang/core/bind"
	"github.com/ren-lang/core/errval"
	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/symbol"
	"github.com/ren-lang/core/unwind"
	"github.com/ren-lang/core/value"
)

// CallFrame is one call-in-progress (spec.md §4.6: "one frame
// represents one call-in-progress"). It implements value.Args so a
// native Dispatcher can read its gathered arguments and write its
// result, and eval.Runner so a control-flow native can recurse back
// into the owning Evaluator.
type CallFrame struct {
	array *series.Series[value.Cell]
	index int
	spec  bind.Specifier
	out   value.Cell
	cur   value.Cell // "cell": the value most recently gathered

	fnName string
	fn     *value.Function
	args   *series.Series[value.Cell]

	thrown                bool
	thrownName, thrownArg value.Cell

	eval  *Evaluator
	prior *CallFrame
}

// Function returns the function this frame is dispatching.
func (f *CallFrame) Function() *value.Function { return f.fn }

// Caller returns the frame that was innermost when this one was
// pushed — nil for the outermost call. A native invoked directly
// from a FUNC!'s body (including through fully-resolved nested calls)
// always finds that FUNC!'s own frame here, which is what lets RETURN
// identify which call it is unwinding to without walking Go's stack.
func (f *CallFrame) Caller() *CallFrame { return f.prior }

// Arg returns the 1-based gathered argument slot.
func (f *CallFrame) Arg(i int) *value.Cell { return f.args.At(i - 1) }

// Out returns the frame's output cell.
func (f *CallFrame) Out() *value.Cell { return &f.out }

// SetThrown marks the frame's result as a non-local exit, per the
// throw/trap protocol (spec.md §4.7).
func (f *CallFrame) SetThrown(name, arg value.Cell) {
	f.thrown = true
	f.thrownName = name
	f.thrownArg = arg
	f.out.SetFlag(value.Thrown)
}

// DoBlock evaluates blk — which must be an array-kind cell gathered
// verbatim (e.g. a hard-quoted parameter) — using this frame's own
// specifier, the one that was active at the call site. This is how
// control-flow natives (DO, EITHER, TRAP, CATCH) recurse back into
// the evaluator without package value or package eval's Dispatcher
// signature needing to know about each other.
func (f *CallFrame) DoBlock(blk value.Cell) unwind.Outcome {
	return f.eval.DoArray(blk.ArraySeries(), int(blk.Index()), f.spec)
}

// Specifier exposes the frame's own specifier, for natives (e.g.
// RETURN) that need to resolve a word against the calling context
// rather than evaluate a block.
func (f *CallFrame) Specifier() bind.Specifier { return f.spec }

// Runner is the interface control-flow natives type-assert
// value.Args to when they need to evaluate a block argument rather
// than simply read/write cells.
type Runner interface {
	value.Args
	DoBlock(blk value.Cell) unwind.Outcome
	Specifier() bind.Specifier
}

// Evaluator runs Do_Core for one task. It is not safe for concurrent
// use by multiple goroutines, matching spec.md §1's "cooperative
// single-threaded execution" assumption.
type Evaluator struct {
	symtab *symbol.Table
	stack  []*CallFrame
	guard  []value.Cell
}

// New creates an Evaluator backed by tbl for any diagnostics that
// need a word's spelling.
func New(tbl *symbol.Table) *Evaluator {
	return &Evaluator{symtab: tbl}
}

// PushGuard pushes v onto the explicit guard stack (spec.md §4.5)
// and returns a token for PopGuard.
func (e *Evaluator) PushGuard(v value.Cell) int {
	e.guard = append(e.guard, v)
	return len(e.guard) - 1
}

// PopGuard pops the guard stack back down to (and including) id.
func (e *Evaluator) PopGuard(id int) {
	if id < 0 || id > len(e.guard) {
		panic("eval: PopGuard out of range")
	}
	e.guard = e.guard[:id]
}

// FrameDepth reports the number of call frames currently on the
// stack — one of the counters a TRAP/CATCH boundary snapshot
// (unwind.State) must see return to its pushed value once the
// boundary closes (spec.md §4.7).
func (e *Evaluator) FrameDepth() int { return len(e.stack) }

// GuardDepth reports the number of cells currently on the explicit
// guard stack, the other counter an unwind.State snapshot tracks.
func (e *Evaluator) GuardDepth() int { return len(e.guard) }

// Apply invokes fn directly against already-evaluated argument
// cells, bypassing the normal gather-from-source-array step entirely
// — spec.md §6.1's `apply(out, function, args…, END)` embedding
// operation. args must supply exactly fn.Arity() values, in parameter
// order; refinement parameters are passed as plain LOGIC! cells like
// any other argument, since there is no source PATH! here to derive
// activation from.
func (e *Evaluator) Apply(fn *value.Function, args []value.Cell, spec bind.Specifier) unwind.Outcome {
	if len(args) > fn.Arity() {
		return unwind.Fail(errval.ArityExtraArg(fn.Name))
	}
	if len(args) < fn.Arity() {
		return unwind.Fail(errval.ArityMissingArg(fn.Name, ""))
	}
	argVals := series.Make[value.Cell](fn.Arity())
	argVals.Extend(args...)

	var caller *CallFrame
	if len(e.stack) > 0 {
		caller = e.stack[len(e.stack)-1]
	}
	frame := &CallFrame{spec: spec, fnName: fn.Name, fn: fn, args: argVals, eval: e, prior: caller}
	e.stack = append(e.stack, frame)
	err := fn.Dispatch(frame)
	e.stack = e.stack[:len(e.stack)-1]
	if err != nil {
		return unwind.Fail(err)
	}
	if frame.thrown {
		return unwind.Throw(frame.thrownName, frame.thrownArg)
	}
	return unwind.Ok(frame.out)
}

// GCRoots implements gc.RootProvider: every frame's out/current
// cells and gathered args, plus the guard stack, are live roots for
// as long as the task's call stack holds them (spec.md §4.5: "task-
// local evaluator stack frames (all out-cells, arg cells, live
// series)").
func (e *Evaluator) GCRoots() []value.Cell {
	var roots []value.Cell
	for _, f := range e.stack {
		roots = append(roots, f.out, f.cur)
		if f.args != nil {
			for i := 0; i < f.args.Len(); i++ {
				roots = append(roots, *f.args.At(i))
			}
		}
	}
	roots = append(roots, e.guard...)
	return roots
}

// DoArray evaluates every expression in arr starting at index,
// returning the Outcome of the last one — the semantics of `do
// [block]` (spec.md §8 scenario c). Evaluation stops early and
// propagates the first Thrown or Error outcome encountered.
func (e *Evaluator) DoArray(arr *series.Series[value.Cell], index int, spec bind.Specifier) unwind.Outcome {
	out := unwind.Ok(value.Void())
	for index < arr.Len() {
		var oc unwind.Outcome
		oc, index = e.doNext(arr, index, spec)
		if !oc.IsValue() {
			return oc
		}
		out = oc
	}
	return out
}

// doNext evaluates exactly one full expression starting at index —
// a single primary position, extended left-to-right by any number of
// enfix (lookback) function calls immediately following it — and
// returns the resulting Outcome plus the index just past it.
func (e *Evaluator) doNext(arr *series.Series[value.Cell], index int, spec bind.Specifier) (unwind.Outcome, int) {
	if index >= arr.Len() {
		return unwind.Ok(value.Void()), index
	}
	oc, next := e.evalSingle(arr, index, spec)
	if !oc.IsValue() {
		return oc, next
	}
	left := oc.Value
	for next < arr.Len() {
		cand := *arr.At(next)
		if !cand.Kind().IsWord() {
			break
		}
		target, _, _, err := bind.Lookup(&cand, spec)
		if err != nil || target.Kind() != value.KindFunction || !target.HasFlag(value.Enfix) {
			break
		}
		fn := target.FunctionValue()
		argOc, nextIdx, ferr := e.dispatch(fn, fn.Name, arr, next+1, spec, &left, nil)
		if ferr != nil {
			return unwind.Fail(ferr), nextIdx
		}
		if !argOc.IsValue() {
			return argOc, nextIdx
		}
		left = argOc.Value
		next = nextIdx
	}
	return unwind.Ok(left), next
}

// evalSingle evaluates the one primary position at index, following
// spec.md §4.6's per-Kind transition table. For a WORD!/PATH! that
// resolves to a function, this performs the full prefix call
// (argument gathering through dispatch); for everything else it
// returns a plain copy.
func (e *Evaluator) evalSingle(arr *series.Series[value.Cell], index int, spec bind.Specifier) (unwind.Outcome, int) {
	cur := *arr.At(index)
	switch {
	case cur.Kind() == value.KindSetWord:
		valOc, next := e.doNext(arr, index+1, spec)
		if !valOc.IsValue() {
			return valOc, next
		}
		ctx, idx, err := bind.Resolve(&cur, spec)
		if err != nil {
			return unwind.Fail(err), next
		}
		if err := ctx.SetVar(idx, valOc.Value); err != nil {
			return unwind.Fail(err), next
		}
		return unwind.Ok(valOc.Value), next

	case cur.Kind() == value.KindGetWord:
		target, _, _, err := bind.Lookup(&cur, spec)
		if err != nil {
			return unwind.Fail(spelledErr(e.symtab, &cur, err)), index + 1
		}
		return unwind.Ok(*target), index + 1

	case cur.Kind() == value.KindLitWord:
		return unwind.Ok(cur.StripQuote()), index + 1

	case cur.Kind() == value.KindGroup:
		sub := e.DoArray(cur.ArraySeries(), int(cur.Index()), spec)
		return sub, index + 1

	case cur.Kind() == value.KindBar:
		return unwind.Ok(cur), index + 1

	case cur.Kind() == value.KindWord:
		target, _, _, err := bind.Lookup(&cur, spec)
		if err != nil {
			return unwind.Fail(spelledErr(e.symtab, &cur, err)), index + 1
		}
		if target.Kind() == value.KindFunction {
			fn := target.FunctionValue()
			oc, next, ferr := e.dispatch(fn, fn.Name, arr, index+1, spec, nil, nil)
			if ferr != nil {
				return unwind.Fail(ferr), next
			}
			return oc, next
		}
		return unwind.Ok(*target), index + 1

	case cur.Kind() == value.KindPath:
		return e.evalPath(cur, arr, index, spec)

	default:
		return unwind.Ok(cur), index + 1
	}
}

// spelledErr upgrades a bare bind error into an errval error carrying
// the word's spelling, per spec.md §7's "not-bound"/"no-value"
// categories.
func spelledErr(tbl *symbol.Table, c *value.Cell, err error) error {
	spelling, _ := tbl.Spelling(c.Symbol())
	if err == bind.ErrUnbound {
		return errval.Unbound(spelling)
	}
	if _, ok := err.(value.ErrExpiredFrame); ok {
		return errval.NoValue(spelling)
	}
	return err
}

// evalPath evaluates a plain PATH! call: the head word must resolve
// to a function, and every selector word beyond the head names a
// refinement to activate (spec.md §8 scenario e's `catch/name`).
// SET-PATH!/GET-PATH! indexing into an object are not needed by any
// testable scenario this core implements and are left for a future
// extension of this evaluator.
func (e *Evaluator) evalPath(cur value.Cell, arr *series.Series[value.Cell], index int, spec bind.Specifier) (unwind.Outcome, int) {
	path := cur.ArraySeries()
	start := int(cur.Index())
	if path.Len() <= start {
		return unwind.Fail(errval.UserError("path has no head word")), index + 1
	}
	head := *path.At(start)
	if !head.Kind().IsWord() {
		return unwind.Fail(errval.UserError("path head must be a word")), index + 1
	}
	target, _, _, err := bind.Lookup(&head, spec)
	if err != nil {
		return unwind.Fail(spelledErr(e.symtab, &head, err)), index + 1
	}
	if target.Kind() != value.KindFunction {
		return unwind.Ok(*target), index + 1
	}
	fn := target.FunctionValue()
	refinements := map[symbol.ID]bool{}
	for i := start + 1; i < path.Len(); i++ {
		sel := *path.At(i)
		if sel.Kind().IsWord() {
			refinements[sel.Symbol()] = true
		}
	}
	oc, next, ferr := e.dispatch(fn, fn.Name, arr, index+1, spec, nil, refinements)
	if ferr != nil {
		return unwind.Fail(ferr), next
	}
	return oc, next
}

// dispatch performs a full function call: push a frame, gather
// arguments per parameter convention (spec.md §4.6 step 2), type-
// check them (step 3), invoke the dispatcher (step 4), and drop the
// frame (step 5). If leftArg is non-nil, it is an already-evaluated
// enfix left-hand value supplied for the function's first parameter
// instead of being gathered from arr. refinements, if non-nil, names
// the refinement symbols a PATH! call activated; a plain WORD! call
// passes nil, activating none.
func (e *Evaluator) dispatch(fn *value.Function, name string, arr *series.Series[value.Cell], index int, spec bind.Specifier, leftArg *value.Cell, refinements map[symbol.ID]bool) (unwind.Outcome, int, error) {
	argVals := series.Make[value.Cell](fn.Arity())
	for i := 0; i < fn.Arity(); i++ {
		argVals.Extend(value.Void())
	}

	activeRefinements := refinements
	if activeRefinements == nil {
		activeRefinements = map[symbol.ID]bool{}
	}
	skip := false
	paramStart := 0
	if leftArg != nil && fn.Arity() > 0 {
		*argVals.At(0) = *leftArg
		paramStart = 1
	}

	for i := paramStart; i < len(fn.Params); i++ {
		p := fn.Params[i]
		switch p.Convention {
		case value.ConvRefinement:
			on := activeRefinements[p.Sym]
			*argVals.At(i) = value.Logic(on)
			skip = !on
		case value.ConvLocal:
			*argVals.At(i) = value.Void()
			skip = false
		default:
			if skip {
				*argVals.At(i) = value.Void()
				continue
			}
			v, nextIndex, abort, err := e.gatherOne(p, leftArg != nil, arr, index, spec)
			if err != nil {
				return unwind.Outcome{}, index, err
			}
			index = nextIndex
			if abort != nil {
				return *abort, index, nil
			}
			if !p.Accepts(v.Kind()) {
				return unwind.Outcome{}, index, errval.TypeMismatch(name, "arg", v.Kind())
			}
			*argVals.At(i) = v
		}
	}

	var caller *CallFrame
	if len(e.stack) > 0 {
		caller = e.stack[len(e.stack)-1]
	}
	frame := &CallFrame{array: arr, index: index, spec: spec, fnName: name, fn: fn, args: argVals, eval: e, prior: caller}
	e.stack = append(e.stack, frame)
	err := fn.Dispatch(frame)
	e.stack = e.stack[:len(e.stack)-1]
	if err != nil {
		return unwind.Fail(err), frame.index, nil
	}
	if frame.thrown {
		return unwind.Throw(frame.thrownName, frame.thrownArg), frame.index, nil
	}
	return unwind.Ok(frame.out), frame.index, nil
}

// gatherOne gathers a single argument for parameter p starting at
// index, per spec.md §4.6's convention list. If evaluating the
// argument itself throws or fails, gatherOne returns that Outcome
// via abort (non-nil) rather than a value, so dispatch can propagate
// it unchanged instead of collapsing a Throw into a plain error.
// enfix reports whether the call being gathered for is an enfix call
// (its first argument was the left-hand value).
func (e *Evaluator) gatherOne(p value.Param, enfix bool, arr *series.Series[value.Cell], index int, spec bind.Specifier) (v value.Cell, next int, abort *unwind.Outcome, err error) {
	switch p.Convention {
	case value.ConvNormal:
		if index >= arr.Len() {
			return value.Cell{}, index, nil, errval.ArityMissingArg("", "")
		}
		// An enfix call's remaining args gather exactly one primary
		// (evalSingle): the trailing enfix lookback loop belongs to the
		// enclosing expression, so `1 + 2 * 3` evaluates as the strict
		// left-to-right (1 + 2) * 3 spec.md §5 requires. A prefix call's
		// normal arg gathers one full expression (doNext), so
		// `either 1 = 1 ...` receives the result of `1 = 1` and
		// `return x + 1` returns the sum.
		var oc unwind.Outcome
		var nextIdx int
		if enfix {
			oc, nextIdx = e.evalSingle(arr, index, spec)
		} else {
			oc, nextIdx = e.doNext(arr, index, spec)
		}
		if oc.IsThrown() || oc.IsError() {
			return value.Cell{}, nextIdx, &oc, nil
		}
		if oc.Value.Kind() == value.KindBar {
			return value.Cell{}, nextIdx, nil, errval.ExpressionBarrier("", "")
		}
		return oc.Value, nextIdx, nil, nil

	case value.ConvHardQuote:
		if index >= arr.Len() {
			return value.Cell{}, index, nil, errval.ArityMissingArg("", "")
		}
		raw := *arr.At(index)
		safe, serr := bind.SafeCopy(raw, spec)
		if serr != nil {
			return value.Cell{}, index, nil, serr
		}
		return safe, index + 1, nil, nil

	case value.ConvSoftQuote:
		if index >= arr.Len() {
			return value.Cell{}, index, nil, errval.ArityMissingArg("", "")
		}
		raw := *arr.At(index)
		if raw.Kind() == value.KindGroup || raw.Kind() == value.KindGetWord || raw.Kind() == value.KindGetPath {
			// Only the GROUP!/GET-WORD!/GET-PATH! itself is evaluated
			// (one primary), not a whole enfix-extended expression.
			oc, nextIdx := e.evalSingle(arr, index, spec)
			if oc.IsThrown() || oc.IsError() {
				return value.Cell{}, nextIdx, &oc, nil
			}
			return oc.Value, nextIdx, nil, nil
		}
		safe, serr := bind.SafeCopy(raw, spec)
		if serr != nil {
			return value.Cell{}, index, nil, serr
		}
		return safe, index + 1, nil, nil

	case value.ConvVariadic:
		return value.Array(value.KindBlock, arr), index, nil, nil

	default:
		return value.Void(), index, nil, nil
	}
}
