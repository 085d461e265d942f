// Package classify turns the VM's wrapper-module surface into a module
// index.
//
// Each function is classified in two pure passes. Provisional derives the
// record from the registry lookup; Correct then applies the name-prefix rule,
// which is authoritative, and returns a new record when the kinds disagree.
// A module that cannot be enumerated is logged and skipped; it never aborts
// the others.
package classify

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/registry"
)

// Failure stages.
const (
	StageName       = "name"
	StageSignatures = "signatures"
	StageDuplicate  = "duplicate"
)

// ErrNoSignatures is recorded for a module without a signature table.
var ErrNoSignatures = errors.New("module has no signature table")

// ModuleError records a module skipped during classification.
type ModuleError struct {
	Module string // exposed name, or the handle ID when the name is unknown
	Stage  string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %s: %v", e.Module, e.Stage, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// Options configures Classify.
type Options struct {
	Logger *slog.Logger
}

// Report summarizes a Classify run.
type Report struct {
	Modules   int // modules listed by the surface
	Indexed   int // modules written to the index
	Functions int
	Unknown   int // functions with no registry definition
	Corrected int // functions whose kind the prefix rule changed
	Skipped   []*ModuleError
}

// Classify builds the module index. Only a failure to list modules is
// returned as an error.
func Classify(surface Surface, lookup *registry.Lookup, opts Options) (ir.ModuleIndex, *Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	modules, err := surface.ListModules()
	if err != nil {
		return nil, nil, fmt.Errorf("list modules: %w", err)
	}

	index := make(ir.ModuleIndex, len(modules))
	report := &Report{Modules: len(modules)}

	skip := func(module, stage string, err error) {
		merr := &ModuleError{Module: module, Stage: stage, Err: err}
		report.Skipped = append(report.Skipped, merr)
		logger.Warn("skipping module", "module", module, "stage", stage, "error", err)
	}

	for _, m := range modules {
		name, err := surface.ModuleExposedName(m)
		if err == nil && name == "" {
			err = errors.New("empty exposed name")
		}
		if err != nil {
			skip(m.ID, StageName, err)
			continue
		}
		if _, dup := index[name]; dup {
			skip(name, StageDuplicate, errors.New("exposed name already indexed"))
			continue
		}

		sigs, err := signaturesOf(surface, m)
		if err != nil {
			skip(name, StageSignatures, err)
			continue
		}

		def, stats := classifyModule(name, sigs, lookup, logger)
		index[name] = def
		report.Indexed++
		report.Functions += len(def.Functions)
		report.Unknown += stats.unknown
		report.Corrected += stats.corrected
	}

	logger.Info("classified modules",
		"modules", report.Modules,
		"indexed", report.Indexed,
		"functions", report.Functions,
		"unknown", report.Unknown,
		"corrected", report.Corrected,
		"skipped", len(report.Skipped),
	)
	return index, report, nil
}

func signaturesOf(surface Surface, m Module) ([]Signature, error) {
	table, err := surface.FunctionSignatures(m)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, ErrNoSignatures
	}
	return table.List()
}

type moduleStats struct {
	unknown   int
	corrected int
}

// OwnerType returns the declaring type of the first function that has a
// registry definition, or "" when none has.
func OwnerType(moduleName string, sigs []Signature, lookup *registry.Lookup) string {
	for _, sig := range sigs {
		if def := lookup.Get(QualifiedName(moduleName, sig.Name)); def != nil {
			return def.Type
		}
	}
	return ""
}

func classifyModule(name string, sigs []Signature, lookup *registry.Lookup, logger *slog.Logger) (ir.ModuleDefinition, moduleStats) {
	owner := OwnerType(name, sigs, lookup)
	def := ir.ModuleDefinition{
		Type:      ir.TypeName(owner),
		Functions: make([]ir.FunctionDefinition, 0, len(sigs)),
	}

	var stats moduleStats
	seen := make(map[string]bool, len(sigs))
	for _, sig := range sigs {
		if seen[sig.Name] {
			logger.Warn("duplicate function name", "module", name, "function", sig.Name)
			continue
		}
		seen[sig.Name] = true

		entry := lookup.Get(QualifiedName(name, sig.Name))
		prov := Provisional(sig, entry, owner)
		fn := Correct(prov, entry, owner)
		if entry == nil {
			stats.unknown++
		}
		if fn.DefType != prov.DefType {
			stats.corrected++
		}
		def.Functions = append(def.Functions, fn)
	}
	return def, stats
}
