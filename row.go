package tablemap

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ETag is the opaque concurrency token the table service assigns on every write.
type ETag string

// ETagAny matches any stored ETag, turning conditional writes into unconditional ones.
const ETagAny ETag = "*"

// System property names. Record fields may not use them.
const (
	PropertyPartitionKey = "PartitionKey"
	PropertyRowKey       = "RowKey"
	PropertyTimestamp    = "Timestamp"
	PropertyETag         = "ETag"
)

// Row is the unit the table service persists: a two-part key plus a map of typed columns.
// A column that is not present in Columns has no value.
type Row struct {
	PartitionKey string
	RowKey       string
	Timestamp    *time.Time
	ETag         ETag
	Columns      map[string]Value
}

// NewRow creates an empty row with the given key.
func NewRow(partitionKey, rowKey string) *Row {
	return &Row{
		PartitionKey: partitionKey,
		RowKey:       rowKey,
		Columns:      make(map[string]Value),
	}
}

// Key returns the (partition, row) identity of the row.
func (r *Row) Key() Key {
	return Key{Partition: r.PartitionKey, Row: r.RowKey}
}

// Get returns the named column.
func (r *Row) Get(name string) (Value, bool) {
	v, ok := r.Columns[name]
	return v, ok && !v.IsZero()
}

// Set stores v under name. Setting the zero Value removes the column, since the
// table service cannot hold null columns.
func (r *Row) Set(name string, v Value) {
	if v.IsZero() {
		delete(r.Columns, name)
		return
	}
	if r.Columns == nil {
		r.Columns = make(map[string]Value)
	}
	r.Columns[name] = v
}

// Delete removes the named column.
func (r *Row) Delete(name string) {
	delete(r.Columns, name)
}

// ColumnNames returns the column names in lexical order.
func (r *Row) ColumnNames() []string {
	names := make([]string, 0, len(r.Columns))
	for name := range r.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size estimates the stored size of the row in bytes: key and column name
// lengths plus the payload size of every column.
func (r *Row) Size() int {
	size := len(r.PartitionKey) + len(r.RowKey)
	for name, v := range r.Columns {
		size += len(name)
		switch x := v.Interface().(type) {
		case string:
			size += len(x)
		case []byte:
			size += len(x)
		case byte:
			size++
		case int32:
			size += 4
		case uuid.UUID:
			size += 16
		default:
			size += 8
		}
	}
	return size
}
