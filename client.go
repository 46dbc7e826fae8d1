package tablemap

import (
	"context"
	"net/http"
)

// ActionType is the kind of write a TransactionAction performs.
type ActionType uint8

const (
	ActionAdd           ActionType = iota + 1 // insert; fails if the row exists
	ActionUpsertReplace                       // insert or replace the whole row
	ActionUpdateReplace                       // replace an existing row
	ActionDelete                              // delete by key
)

func (a ActionType) String() string {
	switch a {
	case ActionAdd:
		return "Add"
	case ActionUpsertReplace:
		return "UpsertReplace"
	case ActionUpdateReplace:
		return "UpdateReplace"
	case ActionDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// TransactionAction is one write of a batch transaction. ETag is only consulted by
// ActionUpdateReplace and ActionDelete; the empty ETag behaves like ETagAny.
type TransactionAction struct {
	Type ActionType
	Row  *Row
	ETag ETag
}

// Statuses reported by the table service.
const (
	StatusCreated   = http.StatusCreated
	StatusNoContent = http.StatusNoContent

	// StatusNotExecuted marks an action skipped because another action of the
	// same transaction failed.
	StatusNotExecuted = http.StatusFailedDependency
)

// Response is the per-action outcome of a submitted transaction.
type Response struct {
	Status       int    // HTTP-like status code
	ReasonPhrase string // Human readable reason, set for failures
	ErrorCode    string // Service error code, set for failures
}

// IsError reports whether the response denotes a failed action.
func (r Response) IsError() bool {
	return r.Status >= http.StatusBadRequest
}

// Page is one page of query results.
type Page struct {
	Rows []*Row
	// ContinuationToken resumes the query after this page. It is empty on the last page.
	ContinuationToken string
}

// TableClient is the subset of table service operations used by this package.
// Implementations must be safe for concurrent use.
type TableClient interface {
	// SubmitTransaction applies up to MaxBatchSize actions atomically and returns
	// one response per action, in order. Failed actions are reported through
	// error responses; the returned error is reserved for transport failures.
	SubmitTransaction(ctx context.Context, actions []TransactionAction) ([]Response, error)
	// GetRow returns the row with the given key, or nil when it does not exist.
	GetRow(ctx context.Context, partitionKey, rowKey string) (*Row, error)
	// QueryRows returns one page of rows matching filter, a string produced by
	// TableFilter.Render. The empty filter matches every row.
	QueryRows(ctx context.Context, filter string, pageSize int, continuation string) (Page, error)
	// AddRow inserts row, failing with ErrRowExists if the key is taken.
	AddRow(ctx context.Context, row *Row) error
	// UpsertRow inserts or replaces row.
	UpsertRow(ctx context.Context, row *Row) error
	// UpdateRow replaces an existing row. It fails with ErrRowNotFound when the row
	// does not exist and with ErrPreconditionFailed when etag does not match.
	UpdateRow(ctx context.Context, row *Row, etag ETag) error
	// DeleteRow deletes the row with the given key. Deleting a missing row is not an error.
	DeleteRow(ctx context.Context, partitionKey, rowKey string) error
}
