package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProgram = "udonmeta/program/v1"
	DomainModules = "udonmeta/modules/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramID computes the content-addressed ID of a program document.
// Two documents with the same bytecode, symbols, entry points and heap
// values share an ID regardless of how they were indented on disk.
func ProgramID(doc *ProgramDocument) (string, error) {
	canonical, err := Canonicalize(doc)
	if err != nil {
		return "", fmt.Errorf("ProgramID: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// ModuleIndexDigest computes the content-addressed digest of a module index.
func ModuleIndexDigest(idx ModuleIndex) (string, error) {
	canonical, err := Canonicalize(idx)
	if err != nil {
		return "", fmt.Errorf("ModuleIndexDigest: %w", err)
	}
	return hashWithDomain(DomainModules, canonical), nil
}

// MustProgramID is like ProgramID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramID(doc *ProgramDocument) string {
	id, err := ProgramID(doc)
	if err != nil {
		panic(err)
	}
	return id
}
