package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/udonmeta/internal/ir"
)

// CompileFailed is the result recorded for a request that produced no
// program.
const CompileFailed = "ERROR: Compile Failed"

// Request is one source file to compile.
type Request struct {
	SourceCode string `json:"sourceCode"`
	ClassName  string `json:"className"`
}

// Output is the file written when a job finishes.
type Output struct {
	Results []string `json:"results"`
	Error   *string  `json:"error"`
}

// ParseRequests decodes batch input: either a JSON array of requests or an
// object with a "requests" array.
func ParseRequests(data []byte) ([]Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, invalidInput("input is empty")
	}

	var reqs []Request
	if trimmed[0] == '{' {
		var wrapped struct {
			Requests []Request `json:"requests"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, invalidInput("malformed input JSON: %v", err)
		}
		reqs = wrapped.Requests
	} else if err := json.Unmarshal(trimmed, &reqs); err != nil {
		return nil, invalidInput("malformed input JSON: %v", err)
	}

	if err := ValidateRequests(reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// ValidateRequests rejects empty batches and class names that are empty,
// repeated or not usable as a file name.
func ValidateRequests(reqs []Request) error {
	if len(reqs) == 0 {
		return invalidInput("input contains no requests")
	}
	seen := make(map[string]int, len(reqs))
	for i, r := range reqs {
		name := r.ClassName
		switch {
		case strings.TrimSpace(name) == "":
			return invalidInput("request %d: className is empty", i)
		case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
			return invalidInput("request %d: className %q is not a file name", i, name)
		}
		if prev, dup := seen[name]; dup {
			return invalidInput("request %d: className %q repeats request %d", i, name, prev)
		}
		seen[name] = i
	}
	return nil
}

// MarshalOutput renders the output file as indented JSON.
func MarshalOutput(out Output) ([]byte, error) {
	if out.Results == nil {
		out.Results = []string{}
	}
	return ir.MarshalDocument(out)
}

// WriteFailure writes {results: [], error: msg} to path.
func WriteFailure(path, msg string) error {
	data, err := MarshalOutput(Output{Error: &msg})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func invalidInput(format string, args ...any) error {
	return &Error{Code: ErrCodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}
