package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefType tags how an exposed callable maps onto its implementation.
type DefType string

const (
	DefMethod   DefType = "METHOD_INFO"
	DefField    DefType = "FIELD_INFO"
	DefCtor     DefType = "CTOR_INFO"
	DefOperator DefType = "OPERATOR"

	// DefUnknown marks a callable with no registry definition.
	DefUnknown DefType = "UNKNOWN"
)

// ValidDefTypes defines the allowed defType strings.
var ValidDefTypes = map[DefType]bool{
	DefMethod:   true,
	DefField:    true,
	DefCtor:     true,
	DefOperator: true,
	DefUnknown:  true,
}

// CarriesFlags reports whether records of this type carry isStatic/returnsVoid.
func (d DefType) CarriesFlags() bool {
	return d == DefMethod || d == DefField
}

// ModuleIndex maps a wrapper module's exposed name to its definition.
type ModuleIndex map[string]ModuleDefinition

// ModuleDefinition describes one wrapper module.
type ModuleDefinition struct {
	Type      TypeName             `json:"type"` // null until a function resolves
	Functions []FunctionDefinition `json:"functions"`
}

// FunctionDefinition describes one exposed callable.
type FunctionDefinition struct {
	Name           string  `json:"name"`
	ParameterCount int     `json:"parameterCount"`
	OriginalName   *string `json:"originalName"`
	DefType        DefType `json:"defType"`
	IsStatic       *bool   `json:"isStatic"`
	ReturnsVoid    *bool   `json:"returnsVoid"`
}

// Function returns the named function of a module.
func (m ModuleDefinition) Function(name string) (FunctionDefinition, bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionDefinition{}, false
}

// ExternInfo is the resolved view of an extern signature such as
// "SystemInt32.__op_Addition__SystemInt32_SystemInt32__SystemInt32".
type ExternInfo struct {
	Signature    string
	ModuleName   string
	FunctionName string
	TypeName     string
	FunctionDefinition
}

// ParseSignature splits an extern signature into module and function names.
func ParseSignature(signature string) (module, function string, err error) {
	module, function, ok := strings.Cut(signature, ".")
	if !ok || module == "" || function == "" {
		return "", "", fmt.Errorf("malformed extern signature %q", signature)
	}
	return module, function, nil
}

// Lookup resolves an extern signature against the index.
func (idx ModuleIndex) Lookup(signature string) (ExternInfo, bool) {
	moduleName, funcName, err := ParseSignature(signature)
	if err != nil {
		return ExternInfo{}, false
	}
	mod, ok := idx[moduleName]
	if !ok {
		return ExternInfo{}, false
	}
	fn, ok := mod.Function(funcName)
	if !ok {
		return ExternInfo{}, false
	}
	return ExternInfo{
		Signature:          signature,
		ModuleName:         moduleName,
		FunctionName:       funcName,
		TypeName:           string(mod.Type),
		FunctionDefinition: fn,
	}, true
}

// FunctionCount returns the total number of functions in the index.
func (idx ModuleIndex) FunctionCount() int {
	n := 0
	for _, mod := range idx {
		n += len(mod.Functions)
	}
	return n
}

// UnmarshalModuleIndex parses a module info document.
func UnmarshalModuleIndex(data []byte) (ModuleIndex, error) {
	var idx ModuleIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("invalid module info document: %w", err)
	}
	if idx == nil {
		idx = ModuleIndex{}
	}
	return idx, nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
