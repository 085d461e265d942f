// Package harness runs module classification scenarios.
//
// A scenario is a YAML file carrying a VM surface (the same document the
// modules command reads) and assertions over the module info it produces.
// The surface goes through the full pipeline: schema validation, registry
// scan and classification.
//
// # Scenario Format
//
//	name: getter_reclassified
//	description: "A registry Method with a getter prefix becomes a field"
//	surface:
//	  root:
//	    name: Root
//	    definitions:
//	      - fullName: SystemInt32.__get_MaxValue__SystemInt32
//	        kind: Method
//	        type: System.Int32
//	  modules:
//	    - id: m1
//	      name: SystemInt32
//	      functions:
//	        - {name: __get_MaxValue__SystemInt32, parameterCount: 1}
//	assertions:
//	  - type: function
//	    module: SystemInt32
//	    function: __get_MaxValue__SystemInt32
//	    expect: {defType: FIELD_INFO, originalName: MaxValue}
//	  - type: count
//	    field: corrected
//	    count: 1
//
// # Assertion Types
//
//   - function: the named function record matches expect (subset match on
//     the JSON field names; null matches null)
//   - module_type: the module's owner type equals expect.type
//   - module_absent: the module is not in the index
//   - skipped: the module was skipped at the given stage (its exposed
//     name, or its id when the name could not be read)
//   - count: a report counter equals count (modules, indexed, functions,
//     unknown, corrected, definitions, unresolved, structural)
//
// # Golden Files
//
// RunWithGolden compares the produced module info document against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
