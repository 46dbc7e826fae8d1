package tablemap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

var (
	// ErrRowExists is returned by table clients when an insert targets an existing key.
	ErrRowExists = errors.New("row already exists")
	// ErrRowNotFound is returned by table clients when an update targets a missing key.
	ErrRowNotFound = errors.New("row not found")
	// ErrPreconditionFailed is returned by table clients when a conditional write's ETag does not match.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrNoPartition is returned by point lookups when no partition is known.
	ErrNoPartition = errors.New("no partition key for lookup")
)

// ValidationError reports rows rejected before anything was sent to the table service.
type ValidationError struct {
	TypeName    string
	Duplicates  []Key
	InvalidKeys []Key
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Duplicates) > 0 {
		parts = append(parts, "duplicate entries: "+joinKeys(e.Duplicates))
	}
	if len(e.InvalidKeys) > 0 {
		parts = append(parts, "invalid key(s) for "+joinKeys(e.InvalidKeys))
	}
	return fmt.Sprintf("%s: %s", e.TypeName, strings.Join(parts, "; "))
}

// MappingError reports a column whose stored value cannot be assigned to its field.
type MappingError struct {
	TypeName string
	Field    string
	Reason   string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.TypeName, e.Field, e.Reason)
}

// DecodeError reports a codec failure while reconstructing a complex field.
type DecodeError struct {
	TypeName string
	Field    string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s.%s: failed to decode: %v", e.TypeName, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransactionError wraps a failed batch write with the record type, the error code
// reported by the store and a per-row size diagnostic.
type TransactionError struct {
	TypeName   string
	Code       string
	Diagnostic string
	Err        error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s code:%s stored:%s: %v", e.TypeName, e.Code, e.Diagnostic, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// ActionFailure describes one failed action of a submitted transaction group.
type ActionFailure struct {
	Index    int // position in the submitted action sequence
	Key      Key
	Response Response
}

// BatchError is returned when one or more actions of a transaction group failed.
// Groups submitted before the failing one remain committed.
type BatchError struct {
	Failures []ActionFailure
}

func (e *BatchError) Error() string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = fmt.Sprintf("%s (%d): %s", f.Key, f.Response.Status, f.Response.ReasonPhrase)
	}
	return "SubmitTransaction errors: " + strings.Join(reasons, "\n")
}

// ErrorCode returns the first error code reported by the failing actions.
func (e *BatchError) ErrorCode() string {
	for _, f := range e.Failures {
		if f.Response.ErrorCode != "" {
			return f.Response.ErrorCode
		}
	}
	return ""
}

// ErrorCode extracts a service error code from err, or returns the empty string.
func ErrorCode(err error) string {
	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		if code := batchErr.ErrorCode(); code != "" {
			return code
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}

	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

func joinKeys(keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}
