package tablemock

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nisimpson/tablemap"
)

// MemoryTable is an in-memory tablemap.TableClient. Transactions are atomic and
// every call is recorded so tests can assert on what was sent.
type MemoryTable struct {
	// Inject, when set, is called with the operation name before each call.
	// A non-nil result is returned as the call's error.
	Inject func(op string) error

	mu          sync.Mutex
	rows        map[tablemap.Key]*tablemap.Row
	submissions [][]tablemap.TransactionAction
	calls       map[string]int
	clock       func() time.Time
}

var _ tablemap.TableClient = (*MemoryTable)(nil)

// NewMemoryTable returns an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		rows:  make(map[tablemap.Key]*tablemap.Row),
		calls: make(map[string]int),
		clock: time.Now,
	}
}

// Submissions returns the action groups passed to SubmitTransaction, in call order.
func (m *MemoryTable) Submissions() [][]tablemap.TransactionAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]tablemap.TransactionAction, len(m.submissions))
	copy(out, m.submissions)
	return out
}

// Calls returns how many times op was called.
func (m *MemoryTable) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (m *MemoryTable) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Len returns the number of stored rows.
func (m *MemoryTable) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Row returns a copy of the stored row, or nil.
func (m *MemoryTable) Row(partitionKey, rowKey string) *tablemap.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRow(m.rows[tablemap.Key{Partition: partitionKey, Row: rowKey}])
}

// Put stores row as-is, bypassing all checks. It is meant for test setup.
func (m *MemoryTable) Put(row *tablemap.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.Key()] = m.stamp(row)
}

func (m *MemoryTable) enter(op string) error {
	m.calls[op]++
	if m.Inject != nil {
		return m.Inject(op)
	}
	return nil
}

// SubmitTransaction implements tablemap.TableClient. Every action is checked
// against the rows as they were before the transaction, so a later action does
// not see an earlier action's write. Actions are then applied in order.
func (m *MemoryTable) SubmitTransaction(ctx context.Context, actions []tablemap.TransactionAction) ([]tablemap.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	group := make([]tablemap.TransactionAction, len(actions))
	copy(group, actions)
	m.submissions = append(m.submissions, group)

	if err := m.enter("SubmitTransaction"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(actions) > tablemap.MaxBatchSize {
		return nil, fmt.Errorf("transaction has %d actions, maximum is %d", len(actions), tablemap.MaxBatchSize)
	}

	responses := make([]tablemap.Response, len(actions))
	failed := false
	for i, a := range actions {
		responses[i] = m.check(a)
		failed = failed || responses[i].IsError()
	}
	if failed {
		for i := range responses {
			if !responses[i].IsError() {
				responses[i] = tablemap.Response{
					Status:       tablemap.StatusNotExecuted,
					ReasonPhrase: "action not executed",
					ErrorCode:    "NotExecuted",
				}
			}
		}
		return responses, nil
	}

	for _, a := range actions {
		if a.Type == tablemap.ActionDelete {
			delete(m.rows, a.Row.Key())
			continue
		}
		m.rows[a.Row.Key()] = m.stamp(a.Row)
	}
	return responses, nil
}

// check returns the response an action would produce against the committed rows.
func (m *MemoryTable) check(a tablemap.TransactionAction) tablemap.Response {
	if a.Row == nil {
		return tablemap.Response{Status: http.StatusBadRequest, ReasonPhrase: "action has no row", ErrorCode: "InvalidInput"}
	}
	existing, exists := m.rows[a.Row.Key()]

	switch a.Type {
	case tablemap.ActionAdd:
		if exists {
			return tablemap.Response{Status: http.StatusConflict, ReasonPhrase: "The specified entity already exists.", ErrorCode: "EntityAlreadyExists"}
		}
		return tablemap.Response{Status: tablemap.StatusCreated}
	case tablemap.ActionUpsertReplace:
		if exists {
			return tablemap.Response{Status: tablemap.StatusNoContent}
		}
		return tablemap.Response{Status: tablemap.StatusCreated}
	case tablemap.ActionUpdateReplace:
		if !exists {
			return tablemap.Response{Status: http.StatusNotFound, ReasonPhrase: "The specified resource does not exist.", ErrorCode: "ResourceNotFound"}
		}
		if !etagMatches(a.ETag, existing.ETag) {
			return tablemap.Response{Status: http.StatusPreconditionFailed, ReasonPhrase: "The update condition specified in the request was not satisfied.", ErrorCode: "UpdateConditionNotSatisfied"}
		}
		return tablemap.Response{Status: tablemap.StatusNoContent}
	case tablemap.ActionDelete:
		return tablemap.Response{Status: tablemap.StatusNoContent}
	default:
		return tablemap.Response{Status: http.StatusBadRequest, ReasonPhrase: "unsupported action " + a.Type.String(), ErrorCode: "InvalidInput"}
	}
}

// GetRow implements tablemap.TableClient.
func (m *MemoryTable) GetRow(ctx context.Context, partitionKey, rowKey string) (*tablemap.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetRow"); err != nil {
		return nil, err
	}
	return cloneRow(m.rows[tablemap.Key{Partition: partitionKey, Row: rowKey}]), nil
}

// QueryRows implements tablemap.TableClient. Rows are returned in key order.
func (m *MemoryTable) QueryRows(ctx context.Context, filter string, pageSize int, continuation string) (tablemap.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("QueryRows"); err != nil {
		return tablemap.Page{}, err
	}

	f, err := tablemap.ParseFilter(filter)
	if err != nil {
		return tablemap.Page{}, err
	}
	after, err := decodeToken(continuation)
	if err != nil {
		return tablemap.Page{}, err
	}

	keys := make([]tablemap.Key, 0, len(m.rows))
	for k := range m.rows {
		if matches(f, k) && (continuation == "" || keyLess(after, k)) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	var page tablemap.Page
	if pageSize > 0 && len(keys) > pageSize {
		keys = keys[:pageSize]
		page.ContinuationToken = encodeToken(keys[len(keys)-1])
	}
	for _, k := range keys {
		page.Rows = append(page.Rows, cloneRow(m.rows[k]))
	}
	return page, nil
}

// AddRow implements tablemap.TableClient.
func (m *MemoryTable) AddRow(ctx context.Context, row *tablemap.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddRow"); err != nil {
		return err
	}
	if _, ok := m.rows[row.Key()]; ok {
		return fmt.Errorf("%s: %w", row.Key(), tablemap.ErrRowExists)
	}
	m.rows[row.Key()] = m.stamp(row)
	return nil
}

// UpsertRow implements tablemap.TableClient.
func (m *MemoryTable) UpsertRow(ctx context.Context, row *tablemap.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpsertRow"); err != nil {
		return err
	}
	m.rows[row.Key()] = m.stamp(row)
	return nil
}

// UpdateRow implements tablemap.TableClient.
func (m *MemoryTable) UpdateRow(ctx context.Context, row *tablemap.Row, etag tablemap.ETag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateRow"); err != nil {
		return err
	}
	existing, ok := m.rows[row.Key()]
	if !ok {
		return fmt.Errorf("%s: %w", row.Key(), tablemap.ErrRowNotFound)
	}
	if !etagMatches(etag, existing.ETag) {
		return fmt.Errorf("%s: %w", row.Key(), tablemap.ErrPreconditionFailed)
	}
	m.rows[row.Key()] = m.stamp(row)
	return nil
}

// DeleteRow implements tablemap.TableClient.
func (m *MemoryTable) DeleteRow(ctx context.Context, partitionKey, rowKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteRow"); err != nil {
		return err
	}
	delete(m.rows, tablemap.Key{Partition: partitionKey, Row: rowKey})
	return nil
}

// stamp returns a stored copy of row with a new timestamp and ETag.
func (m *MemoryTable) stamp(row *tablemap.Row) *tablemap.Row {
	out := cloneRow(row)
	now := m.clock().UTC()
	out.Timestamp = &now
	out.ETag = tablemap.ETag(uuid.NewString())
	return out
}

func etagMatches(want, stored tablemap.ETag) bool {
	return want == "" || want == tablemap.ETagAny || want == stored
}

func matches(f tablemap.TableFilter, k tablemap.Key) bool {
	if p, ok := f.Partition(); ok && p != k.Partition {
		return false
	}
	if r, ok := f.Row(); ok && r != k.Row {
		return false
	}
	return true
}

func keyLess(a, b tablemap.Key) bool {
	if a.Partition != b.Partition {
		return a.Partition < b.Partition
	}
	return a.Row < b.Row
}

func encodeToken(k tablemap.Key) string {
	return base64.URLEncoding.EncodeToString([]byte(k.Partition + "\x00" + k.Row))
}

func decodeToken(token string) (tablemap.Key, error) {
	if token == "" {
		return tablemap.Key{}, nil
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return tablemap.Key{}, fmt.Errorf("invalid continuation token: %w", err)
	}
	p, r, ok := strings.Cut(string(data), "\x00")
	if !ok {
		return tablemap.Key{}, fmt.Errorf("invalid continuation token %q", token)
	}
	return tablemap.Key{Partition: p, Row: r}, nil
}

func cloneRow(row *tablemap.Row) *tablemap.Row {
	if row == nil {
		return nil
	}
	out := *row
	out.Columns = make(map[string]tablemap.Value, len(row.Columns))
	for k, v := range row.Columns {
		out.Columns[k] = v
	}
	if row.Timestamp != nil {
		ts := *row.Timestamp
		out.Timestamp = &ts
	}
	return &out
}
