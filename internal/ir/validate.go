package ir

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a program document against its invariants.
// Returns all errors (not fail-fast).
func (d *ProgramDocument) Validate() []ValidationError {
	var errs []ValidationError

	if len(d.ByteCodeHex)%2 != 0 {
		errs = append(errs, ValidationError{
			Field:   "byteCodeHex",
			Message: "odd number of hex digits",
		})
	}
	if d.ByteCodeHex != strings.ToUpper(d.ByteCodeHex) {
		errs = append(errs, ValidationError{
			Field:   "byteCodeHex",
			Message: "hex digits must be uppercase",
		})
	}
	if _, err := hex.DecodeString(d.ByteCodeHex); err != nil {
		errs = append(errs, ValidationError{
			Field:   "byteCodeHex",
			Message: err.Error(),
		})
	}
	if d.ByteCodeLength != len(d.ByteCodeHex)/2 {
		errs = append(errs, ValidationError{
			Field:   "byteCodeLength",
			Message: fmt.Sprintf("is %d, want %d", d.ByteCodeLength, len(d.ByteCodeHex)/2),
		})
	}

	for key, sym := range d.Symbols {
		if sym.Name != key {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("symbols.%s.name", key),
				Message: fmt.Sprintf("name %q does not match key", sym.Name),
			})
		}
	}

	seenEntries := make(map[string]bool)
	for i, ep := range d.EntryPoints {
		if seenEntries[ep.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entryPoints[%d].name", i),
				Message: fmt.Sprintf("duplicate entry point %q", ep.Name),
			})
		}
		seenEntries[ep.Name] = true
	}

	for _, addr := range d.HeapInitialValues.SortedAddresses() {
		entry := d.HeapInitialValues[addr]
		if entry.Address != addr {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("heapInitialValues.%d.address", addr),
				Message: fmt.Sprintf("address %d does not match key", entry.Address),
			})
		}
		if !entry.Value.IsSerializable {
			if _, ok := entry.Value.Fallback(); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("heapInitialValues.%d.value", addr),
					Message: "non-serializable value must be a {type, toString} object",
				})
			}
		}
	}

	return errs
}

// Validate checks a module definition.
func (m *ModuleDefinition) Validate(moduleName string) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for i, fn := range m.Functions {
		field := fmt.Sprintf("%s.functions[%d]", moduleName, i)
		if seen[fn.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate function name %q", fn.Name),
			})
		}
		seen[fn.Name] = true

		if !ValidDefTypes[fn.DefType] {
			errs = append(errs, ValidationError{
				Field:   field + ".defType",
				Message: fmt.Sprintf("invalid defType %q", fn.DefType),
			})
		}
		if !fn.DefType.CarriesFlags() && (fn.IsStatic != nil || fn.ReturnsVoid != nil) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s must not carry isStatic/returnsVoid", fn.DefType),
			})
		}
	}

	return errs
}
