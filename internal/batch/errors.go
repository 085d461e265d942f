package batch

import "fmt"

// ErrorCode categorizes fatal batch failures.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeJobNotFound  ErrorCode = "JOB_NOT_FOUND"
	ErrCodeNotPending   ErrorCode = "JOB_NOT_PENDING"
	ErrCodeStale        ErrorCode = "JOB_STALE"
	ErrCodeWorkdir      ErrorCode = "WORKDIR"
	ErrCodeOutput       ErrorCode = "OUTPUT_WRITE"
)

// Error is a fatal batch failure. Per-item compile failures are not errors;
// they produce CompileFailed results.
type Error struct {
	Code    ErrorCode
	JobID   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.JobID != "" {
		msg = fmt.Sprintf("job %s: %s", e.JobID, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }
