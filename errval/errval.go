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

// Package errval implements the error! value (spec.md §7): a Go
// error that is simultaneously a first-class, inspectable context
// with type/id/message/where/near/file/line fields, catchable by
// TRAP and reflected back into the language as a value.Cell of kind
// KindError.
package errval

import (
	"fmt"

	"github.com/ren-lang/core/series"
	"github.com/ren-lang/core/symbol"
	"github.com/ren-lang/core/value"
)

// Error is the concrete Go error type behind every error! value.
type Error struct {
	Type    string // category, e.g. "math", "script", "syntax"
	ID      string // specific identifier, e.g. "zero-divide"
	Message string
	Where   []string // call-stack snapshot, innermost first
	Near    string   // source excerpt near the failure
	File    string
	Line    int

	cause error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s-%s: %s", e.Type, e.ID, e.Message)
	}
	return fmt.Sprintf("%s-%s", e.Type, e.ID)
}

// Unwrap exposes a wrapped cause, if any, so errors.Is/As compose
// through an errval.Error the way the rest of the module expects.
func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error of the given category/id with a formatted message.
func New(typ, id, format string, args ...any) *Error {
	return &Error{Type: typ, ID: id, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that carries an underlying cause.
func Wrap(typ, id string, cause error) *Error {
	return &Error{Type: typ, ID: id, Message: cause.Error(), cause: cause}
}

// WithWhere attaches a call-stack snapshot (function names,
// innermost first) to a copy of e.
func (e *Error) WithWhere(where []string) *Error {
	c := *e
	c.Where = where
	return &c
}

// WithNear attaches a source-excerpt snapshot to a copy of e.
func (e *Error) WithNear(near, file string, line int) *Error {
	c := *e
	c.Near, c.File, c.Line = near, file, line
	return &c
}

// Common category symbols, matching spec.md §7's grouping.
const (
	CategoryType     = "type"
	CategoryArity    = "arity"
	CategoryLookup   = "lookup"
	CategoryLimit    = "limit"
	CategoryProtect  = "protect"
	CategorySyntax   = "syntax"
	CategoryHalt     = "halt"
	CategoryUser     = "user"
	CategoryInternal = "internal"
)

// ZeroDivide is the error testable property 8.d names explicitly
// ("an error value whose id is the zero-divide symbol").
func ZeroDivide() *Error {
	return New(CategoryType, "zero-divide", "attempt to divide by zero")
}

// Unbound reports a word with no binding.
func Unbound(spelling string) *Error {
	return New(CategoryLookup, "not-bound", "%s has no value", spelling)
}

// NoValue reports a bound word whose slot holds void.
func NoValue(spelling string) *Error {
	return New(CategoryLookup, "no-value", "%s has no value", spelling)
}

// ArityMissingArg reports a function call short of arguments.
func ArityMissingArg(fnName, paramName string) *Error {
	return New(CategoryArity, "no-arg", "%s is missing its %s argument", fnName, paramName)
}

// ArityExtraArg reports a function call evaluated with excess args
// supplied through APPLY-style invocation.
func ArityExtraArg(fnName string) *Error {
	return New(CategoryArity, "extra-arg", "%s was called with too many arguments", fnName)
}

// ExpressionBarrier reports a BAR! encountered where an argument
// was expected.
func ExpressionBarrier(fnName, paramName string) *Error {
	return New(CategoryArity, "expression-barrier", "%s's %s argument hit an expression barrier", fnName, paramName)
}

// TypeMismatch reports an argument whose Kind fails the
// parameter's typeset check.
func TypeMismatch(fnName, paramName string, got value.Kind) *Error {
	return New(CategoryType, "expect-arg", "%s's %s argument does not accept %s", fnName, paramName, got)
}

// LockedSeries reports a mutation attempt on a locked series.
func LockedSeries() *Error {
	return New(CategoryProtect, "locked", "series is locked and cannot be modified")
}

// ProtectedVar reports a SET-WORD! assignment to a locked key.
func ProtectedVar(spelling string) *Error {
	return New(CategoryProtect, "protected-word", "%s is protected and cannot be set", spelling)
}

// StackOverflow reports the evaluator's frame stack exceeding its limit.
func StackOverflow() *Error {
	return New(CategoryLimit, "stack-overflow", "stack overflow")
}

// Halt reports a cooperative interruption.
func Halt() *Error {
	return New(CategoryHalt, "halt", "halted by request")
}

// UncaughtThrow reports a throw that escaped every frame.
func UncaughtThrow(name string) *Error {
	return New(CategoryInternal, "no-catch", "no CATCH for throw named %s", name)
}

// UserError wraps a FAIL-raised message as a user-category error.
func UserError(message string) *Error {
	return New(CategoryUser, "user", "%s", message)
}

// fieldNames are the error! context's fixed keys, in varlist order.
var fieldNames = []string{"type", "id", "message", "where", "near", "file", "line"}

// ToContext reflects e into a value.Context of kind CtxError,
// interning field names and values against tbl. This is the bridge
// spec.md §7 requires: "errors are first-class values... with
// fields: type, id, message, where, near, file, line".
func (e *Error) ToContext(tbl *symbol.Table) *value.Context {
	ctx := value.New(value.CtxError, len(fieldNames))
	for i, name := range fieldNames {
		ctx.KeylistSeries().At(i + 1).Sym = tbl.InternString(name)
	}
	setWord := func(i int, s string) {
		sym := tbl.InternString(s)
		ctx.SetVar(i, value.Word(value.KindWord, sym))
	}
	setStr := func(i int, s string) {
		ctx.SetVar(i, value.String(series.FromSlice([]byte(s))))
	}
	setWord(1, e.Type)
	setWord(2, e.ID)
	setStr(3, e.Message)
	where := ""
	for i, w := range e.Where {
		if i > 0 {
			where += " "
		}
		where += w
	}
	setStr(4, where)
	setStr(5, e.Near)
	setStr(6, e.File)
	ctx.SetVar(7, value.Integer(int64(e.Line)))
	return ctx
}
