// Package asset locates compiled program blobs inside host asset files.
//
// A host asset is line-oriented text. The compiled program is stored on a
// single line of the form
//
//	serializedProgramCompressedBytes: 1F8B0800...
//
// where the value is the hex encoding of a gzip stream.
package asset

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// DefaultKey is the asset field that carries the compressed program.
const DefaultKey = "serializedProgramCompressedBytes"

// ErrNoBlob is returned when the asset has no program line.
// Some assets legitimately lack one; callers skip them.
var ErrNoBlob = errors.New("no program blob in asset")

// ErrorCode categorizes blob decoding failures.
type ErrorCode string

const (
	ErrCodeOddHex     ErrorCode = "ODD_HEX_LENGTH"
	ErrCodeInvalidHex ErrorCode = "INVALID_HEX"
	ErrCodeGzip       ErrorCode = "GZIP"
)

// Error is a blob decoding failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor finds and decodes the program blob of an asset.
type Extractor struct {
	key string
	re  *regexp.Regexp
}

// NewExtractor creates an extractor for the given field key.
// An empty key selects DefaultKey.
func NewExtractor(key string) *Extractor {
	if key == "" {
		key = DefaultKey
	}
	// [ \t]* instead of \s* keeps a match from spanning lines.
	re := regexp.MustCompile(regexp.QuoteMeta(key) + `:[ \t]*([0-9a-fA-F]+)`)
	return &Extractor{key: key, re: re}
}

// Key returns the field key the extractor matches.
func (x *Extractor) Key() string { return x.key }

// Find returns the hex digits of the first matching line.
func (x *Extractor) Find(text string) (string, bool) {
	m := x.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Extract finds the blob and returns its decompressed bytes.
// Returns ErrNoBlob if the asset has no program line.
func (x *Extractor) Extract(text string) ([]byte, error) {
	digits, ok := x.Find(text)
	if !ok {
		return nil, ErrNoBlob
	}
	return DecodeBlob(digits)
}

// DecodeBlob hex-decodes and gzip-decompresses a blob.
func DecodeBlob(digits string) ([]byte, error) {
	digits = strings.TrimSpace(digits)
	if len(digits)%2 != 0 {
		return nil, &Error{
			Code:    ErrCodeOddHex,
			Message: fmt.Sprintf("%d hex digits", len(digits)),
		}
	}

	compressed, err := hex.DecodeString(digits)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidHex, Message: "blob is not hex", Err: err}
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &Error{Code: ErrCodeGzip, Message: "blob is not a gzip stream", Err: err}
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, &Error{Code: ErrCodeGzip, Message: "truncated or corrupt gzip stream", Err: err}
	}
	return data, nil
}

// EncodeBlob is the inverse of DecodeBlob: gzip-compress, then uppercase hex.
func EncodeBlob(data []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("encode blob: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("encode blob: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf.Bytes())), nil
}

// FormatLine renders the asset line carrying an encoded blob.
func FormatLine(key, digits string) string {
	if key == "" {
		key = DefaultKey
	}
	return key + ": " + digits
}
