package classify

import "sync"

// Module is an opaque handle to one wrapper module of the VM surface.
type Module struct {
	ID string
}

// Signature is one exposed callable as the wrapper module declares it.
type Signature struct {
	Name           string
	ParameterCount int
}

// Signatures yields a module's exposed callables in discovery order.
type Signatures interface {
	List() ([]Signature, error)
}

// Surface is the VM's wrapper-module surface.
type Surface interface {
	ListModules() ([]Module, error)
	ModuleExposedName(m Module) (string, error)
	FunctionSignatures(m Module) (Signatures, error)
}

// EagerSignatures is an already materialized signature table.
type EagerSignatures []Signature

// List returns the table.
func (s EagerSignatures) List() ([]Signature, error) { return s, nil }

// LazySignatures defers building the table until first use and memoizes
// the result, error included.
type LazySignatures struct {
	once sync.Once
	load func() ([]Signature, error)
	sigs []Signature
	err  error
}

// NewLazySignatures wraps load.
func NewLazySignatures(load func() ([]Signature, error)) *LazySignatures {
	return &LazySignatures{load: load}
}

// List runs the loader on first call.
func (l *LazySignatures) List() ([]Signature, error) {
	l.once.Do(func() {
		l.sigs, l.err = l.load()
	})
	return l.sigs, l.err
}
