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

// Package unwind implements the throw/trap non-local-exit protocol
// (spec.md §4.7). spec.md's own redesign note for this subsystem
// is explicit: "model the evaluator result as a sum type of Value,
// Thrown{name, arg}, Error{err}. The 'flag in the out cell' trick
// is an optimization; its semantics are a three-way return." Outcome
// is that sum type; the historical "thrown flag" still exists on
// value.Cell for code that needs to recognize a thrown cell sitting
// in an aggregate transiently, but every evaluator entry point in
// this module returns an Outcome rather than relying on callers to
// notice the flag.
package unwind

import "github.com/ren-lang/core/value"

// Kind discriminates the three Outcome shapes.
type Kind uint8

const (
	KindValue Kind = iota
	KindThrown
	KindError
)

// Outcome is the result of running the evaluator (or any native
// that itself may throw or fail) to completion.
type Outcome struct {
	Kind Kind

	// Value holds the result for Kind == KindValue.
	Value value.Cell

	// ThrowName identifies the intended catcher for Kind ==
	// KindThrown: the function value a RETURN/EXIT should match,
	// or the user-supplied name for a THROW/name.
	ThrowName value.Cell
	// ThrowArg is the payload carried by the throw.
	ThrowArg value.Cell

	// Err holds the failure for Kind == KindError.
	Err error
}

// Ok wraps a plain value result.
func Ok(v value.Cell) Outcome { return Outcome{Kind: KindValue, Value: v} }

// Throw wraps a non-local exit.
func Throw(name, arg value.Cell) Outcome {
	return Outcome{Kind: KindThrown, ThrowName: name, ThrowArg: arg}
}

// Fail wraps a recoverable error.
func Fail(err error) Outcome { return Outcome{Kind: KindError, Err: err} }

func (o Outcome) IsValue() bool  { return o.Kind == KindValue }
func (o Outcome) IsThrown() bool { return o.Kind == KindThrown }
func (o Outcome) IsError() bool  { return o.Kind == KindError }

// Matches reports whether a KindThrown outcome's ThrowName is the
// same function/name cell as catcher — the match test a RETURN or
// a named CATCH performs at each candidate frame boundary. Cell
// identity here compares the symbol ID of a word or the pointer of a
// function (bindings are not compared) rather than deep structural
// equality, mirroring Rebol's "same word spelling,
// or same function identity" catch-matching rule.
func (o Outcome) Matches(catcher value.Cell) bool {
	if o.Kind != KindThrown {
		return false
	}
	if o.ThrowName.Kind() != catcher.Kind() {
		return false
	}
	switch o.ThrowName.Kind() {
	case value.KindFunction:
		return o.ThrowName.FunctionValue() == catcher.FunctionValue()
	case value.KindWord, value.KindLitWord:
		return o.ThrowName.Symbol() == catcher.Symbol()
	default:
		return false
	}
}

// Take returns the (name, arg) pair of a KindThrown outcome, the
// counterpart of spec.md's "take thrown arg" step; o itself is
// left unchanged. Panics if called on a non-thrown Outcome, since
// callers must check IsThrown()/Matches() first.
func (o Outcome) Take() (name, arg value.Cell) {
	if o.Kind != KindThrown {
		panic("unwind: Take called on a non-thrown Outcome")
	}
	return o.ThrowName, o.ThrowArg
}
