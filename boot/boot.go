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

// Package boot implements the bootstrap driver (spec.md §4.8): the
// phased sequence that takes an empty process from "pools exist"
// to "a root context holding every native function, ready to run
// user code". It owns the embedded boot image (image.go) and the
// compiled-in native dispatchers (natives.go), pairing the two by
// name the same way a real build would pair a decompressed natives
// table with statically linked C functions.
package boot

import (
	"fmt"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/ren-lang/core/bind"
	"github.com/ren-lang/core/eval"
	"github.com/ren-lang/core/gc"
	"github.com/ren-lang/core/symbol"
	"github.com/ren-lang/core/unwind"
	"github.com/ren-lang/core/value"
)

// enfixNatives names the natives that need the Enfix flag set on
// their FUNCTION! cell — package eval's doNext only ever looks for
// Enfix-flagged functions following a value, so scenario (a)'s
// `1 + 2 * 3` and scenario (b)'s `1 = 1` both depend on this.
var enfixNatives = map[string]bool{"+": true, "*": true, "/": true, "=": true}

// Phase is one step of the boot sequence (spec.md §4.8's eight
// phases, collapsed to the five that this core's scope actually
// distinguishes: the scanner/mold-buffer/datatype/system-object/CLI
// phases spec.md names are outside this core's module list and are
// folded into PhaseBootLoaded here).
type Phase uint8

const (
	PhaseBootStart Phase = iota
	PhaseBootLoaded
	PhaseBootErrors
	PhaseBootMezz
	PhaseBootDone
)

func (p Phase) String() string {
	switch p {
	case PhaseBootStart:
		return "boot-start"
	case PhaseBootLoaded:
		return "boot-loaded"
	case PhaseBootErrors:
		return "boot-errors"
	case PhaseBootMezz:
		return "boot-mezz"
	case PhaseBootDone:
		return "boot-done"
	default:
		return "boot-unknown"
	}
}

// Manifest configures one InitCore call. It is decoded from YAML
// (SPEC_FULL.md §A: "configuration via a YAML boot manifest"), so
// its fields carry json tags — sigs.k8s.io/yaml converts YAML to
// JSON before calling encoding/json under the hood.
type Manifest struct {
	BootLevel   string `json:"boot_level"`
	TraceEval   bool   `json:"trace_eval"`
	BallastSize int64  `json:"ballast_size"`
}

// DefaultManifest is used when no manifest document is supplied.
func DefaultManifest() Manifest {
	return Manifest{BootLevel: "full", BallastSize: 4 << 20}
}

// LoadManifest decodes a YAML boot manifest, starting from
// DefaultManifest so an incomplete document still yields sane
// values for whatever fields it omits.
func LoadManifest(data []byte) (Manifest, error) {
	m := DefaultManifest()
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("boot: decoding manifest: %w", err)
	}
	return m, nil
}

// Task is one unit of cooperative execution (spec.md §4.8's task
// context). Its UUID is a diagnostic tag (SPEC_FULL.md §B's wiring of
// github.com/google/uuid); no error `where` trace or trap snapshot
// reads it.
type Task struct {
	ID      uuid.UUID
	rootTok int
}

// Driver holds everything InitCore assembles: the symbol table,
// collector, evaluator, and root context, plus the natives table
// built from the embedded image.
type Driver struct {
	manifest Manifest
	buildID  uuid.UUID
	phase    Phase

	symtab    *symbol.Table
	collector *gc.Collector
	evaluator *eval.Evaluator
	tracker   *unwind.Tracker
	root      *value.Context
	natives   map[string]*value.Function
}

// InitCore runs the boot sequence (spec.md §4.8 phases 1-7, scoped
// to this module's natives-only boot image) and returns a Driver
// ready for InitTask.
func InitCore(manifest Manifest) (*Driver, error) {
	d := &Driver{manifest: manifest, buildID: uuid.New(), phase: PhaseBootStart}

	// Phase 1: pools + collector.
	d.collector = gc.New(manifest.BallastSize)

	// Phase 2: root context allocated before any native keys
	// exist — spec.md tolerates this as the one exception to
	// "every context has a keylist before anything reads it",
	// since nothing can look anything up in an empty object yet.
	d.root = value.New(value.CtxObject, 0)
	d.collector.SetRootContext(d.root)

	// Phase 3: symbol table and evaluator (this core's low-level
	// I/O, scanner, and mold buffer are out of scope; see
	// SPEC_FULL.md's module map).
	d.symtab = symbol.New()
	d.evaluator = eval.New(d.symtab)
	d.collector.AddRootProvider(d.evaluator)
	d.tracker = unwind.NewTracker()

	// Phase 4: decompress + integrity-check the embedded image.
	specs, err := decodeImage()
	if err != nil {
		d.phase = PhaseBootErrors
		return nil, err
	}
	d.phase = PhaseBootLoaded

	// Phase 6: pair each decoded native spec with its compiled-in
	// Go dispatcher and install it into the root context. (Phase
	// 5, datatype installation, has no work to do: this core has
	// no separate typespec table beyond the Kind enum itself.)
	recycle := func() (int, int) {
		stats := d.collector.Recycle()
		return stats.SeriesFreed, stats.ContextsFreed
	}
	dispatchers := nativeDispatchers(d.symtab, d.evaluator, d.tracker, recycle)
	d.natives = make(map[string]*value.Function, len(specs))
	for _, spec := range specs {
		dispatch, ok := dispatchers[spec.Name]
		if !ok {
			d.phase = PhaseBootErrors
			return nil, fmt.Errorf("boot: no compiled-in dispatcher for native %q", spec.Name)
		}
		params := make([]value.Param, len(spec.Params))
		for i, p := range spec.Params {
			params[i] = value.Param{Sym: d.symtab.InternString(p.Name), Convention: p.Convention}
		}
		fn := value.NewFunction(spec.Name, params, nil, dispatch)
		d.natives[spec.Name] = fn

		sym := d.symtab.InternString(spec.Name)
		idx, aerr := d.root.Add(sym, 0)
		if aerr != nil {
			d.phase = PhaseBootErrors
			return nil, aerr
		}
		cell := value.FunctionCell(fn)
		if enfixNatives[spec.Name] {
			cell.SetFlag(value.Enfix)
		}
		if serr := d.root.SetVar(idx, cell); serr != nil {
			d.phase = PhaseBootErrors
			return nil, serr
		}
	}

	// Phase 7: no mezzanine (sys/base/mezz) source ships with this
	// minimal core — the natives table built above is the whole of
	// what spec.md §1 scopes in — so BOOT_MEZZ has nothing further
	// to run before BOOT_DONE.
	d.phase = PhaseBootMezz
	d.phase = PhaseBootDone
	return d, nil
}

// ShutdownCore drops the Driver's references so its collector and
// root context become eligible for Go's own garbage collection; it
// does not itself run Recycle, matching spec.md's "GC runs to
// completion" being a caller-invoked operation, not an implicit one.
func (d *Driver) ShutdownCore() {
	d.collector = nil
	d.evaluator = nil
	d.tracker = nil
	d.root = nil
	d.natives = nil
	d.phase = PhaseBootStart
}

// InitTask starts a new cooperative task, tagging it with a UUID for
// diagnostics (SPEC_FULL.md §B).
func (d *Driver) InitTask() *Task {
	return &Task{ID: uuid.New()}
}

// ShutdownTask retires a task. This core runs one evaluator per
// Driver rather than per Task (spec.md §1 excludes multithreading,
// so there is exactly one cooperative call stack to retire), so
// there is nothing further to release here beyond the Task value
// itself becoming unreachable.
func (d *Driver) ShutdownTask(t *Task) {}

// Phase reports the driver's current boot phase.
func (d *Driver) Phase() Phase { return d.phase }

// BuildID is the UUID stamped on this Driver's boot image build, per
// SPEC_FULL.md §B's "bootstrap driver's boot-image build stamp".
func (d *Driver) BuildID() uuid.UUID { return d.buildID }

// SymbolTable, Collector, Evaluator, Tracker, and RootContext expose
// the assembled pieces for package interp (the embedding API layer)
// and for tests that need to construct and run their own blocks
// against this Driver's natives.
func (d *Driver) SymbolTable() *symbol.Table  { return d.symtab }
func (d *Driver) Collector() *gc.Collector    { return d.collector }
func (d *Driver) Evaluator() *eval.Evaluator  { return d.evaluator }
func (d *Driver) Tracker() *unwind.Tracker    { return d.tracker }
func (d *Driver) RootContext() *value.Context { return d.root }

// Native looks up one of the installed native functions by name, for
// tests and for package interp's Native.
func (d *Driver) Native(name string) (*value.Function, bool) {
	fn, ok := d.natives[name]
	return fn, ok
}

// Run evaluates arr starting at index against the root context's
// bindings — the do_array embedding operation (spec.md §6.1),
// restricted here to top-level code whose words are already bound
// absolute to the Driver's root.
func (d *Driver) Run(arr *value.Cell) unwind.Outcome {
	return d.evaluator.DoArray(arr.ArraySeries(), int(arr.Index()), bind.Specifier{Frame: d.root})
}
