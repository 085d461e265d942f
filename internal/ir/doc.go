// Package ir provides the JSON document types emitted by udonmeta.
//
// Two documents leave this module: the Program document (one compiled VM
// program: bytecode, symbols, entry points and heap) and the module info
// index (wrapper module name -> ModuleDefinition). Both are consumed by
// external disassemblers and code generators, so their field names and
// ordering are part of the contract.
//
// This package imports nothing internal. Every other package builds on it.
//
// Key constraints:
//   - JSON tags use lowerCamelCase, matching the documents consumers already read
//   - entryPoints keep export order and are never resorted
//   - heapInitialValues are written in ascending numeric address order
//   - canonical JSON (RFC 8785) is used only for content-addressed IDs
package ir
