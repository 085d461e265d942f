package harness

import (
	"github.com/roach88/udonmeta/internal/classify"
	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/registry"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors holds one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	// Index is the produced module info.
	Index ir.ModuleIndex `json:"index"`

	Scan   *registry.ScanReport `json:"-"`
	Report *classify.Report     `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// counter returns a named run counter.
func (r *Result) counter(name string) int {
	switch name {
	case "modules":
		return r.Report.Modules
	case "indexed":
		return r.Report.Indexed
	case "functions":
		return r.Report.Functions
	case "unknown":
		return r.Report.Unknown
	case "corrected":
		return r.Report.Corrected
	case "definitions":
		return r.Scan.Definitions
	case "unresolved":
		return len(r.Scan.Unresolved)
	case "structural":
		return len(r.Scan.Structural)
	}
	return -1
}
