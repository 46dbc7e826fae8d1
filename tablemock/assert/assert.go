// Package assert provides fluent assertions on tablemap rows.
//
// # Usage
//
//	import "github.com/nisimpson/tablemap/tablemock/assert"
//
//	assert.Rows(t, page.Rows).
//		HasCount(2).
//		ContainsKey("orders", "O1")
//
//	assert.Row(t, row).
//		HasColumn("Total", tablemap.DoubleValue(12.5)).
//		LacksColumn("Notes").
//		HasOverflow("Lines", 3)
package assert

import (
	"testing"

	"github.com/nisimpson/tablemap"
)

// RowsAssertion provides fluent assertions on a set of rows.
type RowsAssertion struct {
	t    testing.TB
	rows []*tablemap.Row
}

// Rows creates a RowsAssertion for rows.
func Rows(t testing.TB, rows []*tablemap.Row) *RowsAssertion {
	return &RowsAssertion{t: t, rows: rows}
}

// HasCount asserts the number of rows.
func (a *RowsAssertion) HasCount(expected int) *RowsAssertion {
	a.t.Helper()
	if len(a.rows) != expected {
		a.t.Errorf("expected %d rows, got %d", expected, len(a.rows))
	}
	return a
}

// IsEmpty asserts that there are no rows.
func (a *RowsAssertion) IsEmpty() *RowsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// ContainsKey asserts that a row with the given key is present.
func (a *RowsAssertion) ContainsKey(partition, row string) *RowsAssertion {
	a.t.Helper()
	if a.find(partition, row) == nil {
		a.t.Errorf("expected to find row %s/%s", partition, row)
	}
	return a
}

// LacksKey asserts that no row with the given key is present.
func (a *RowsAssertion) LacksKey(partition, row string) *RowsAssertion {
	a.t.Helper()
	if a.find(partition, row) != nil {
		a.t.Errorf("expected row %s/%s to be absent", partition, row)
	}
	return a
}

// AllInPartition asserts that every row belongs to partition.
func (a *RowsAssertion) AllInPartition(partition string) *RowsAssertion {
	a.t.Helper()
	for _, r := range a.rows {
		if r.PartitionKey != partition {
			a.t.Errorf("expected row %s to be in partition %s", r.Key(), partition)
		}
	}
	return a
}

// Row returns a RowAssertion for the row with the given key, failing if it is absent.
func (a *RowsAssertion) Row(partition, row string) *RowAssertion {
	a.t.Helper()
	r := a.find(partition, row)
	if r == nil {
		a.t.Fatalf("expected to find row %s/%s", partition, row)
	}
	return Row(a.t, r)
}

func (a *RowsAssertion) find(partition, row string) *tablemap.Row {
	for _, r := range a.rows {
		if r.PartitionKey == partition && r.RowKey == row {
			return r
		}
	}
	return nil
}

// RowAssertion provides fluent assertions on a single row.
type RowAssertion struct {
	t   testing.TB
	row *tablemap.Row
}

// Row creates a RowAssertion for row.
func Row(t testing.TB, row *tablemap.Row) *RowAssertion {
	t.Helper()
	if row == nil {
		t.Fatal("expected row to not be nil")
	}
	return &RowAssertion{t: t, row: row}
}

// HasKey asserts the row's key.
func (a *RowAssertion) HasKey(partition, row string) *RowAssertion {
	a.t.Helper()
	if a.row.PartitionKey != partition || a.row.RowKey != row {
		a.t.Errorf("expected key %s/%s, got %s", partition, row, a.row.Key())
	}
	return a
}

// HasColumn asserts that the named column holds expected.
func (a *RowAssertion) HasColumn(name string, expected tablemap.Value) *RowAssertion {
	a.t.Helper()
	v, ok := a.row.Get(name)
	switch {
	case !ok:
		a.t.Errorf("expected column %s to be present", name)
	case !v.Equal(expected):
		a.t.Errorf("expected column %s to be %s, got %s", name, expected, v)
	}
	return a
}

// HasColumnKind asserts the kind of the named column.
func (a *RowAssertion) HasColumnKind(name string, kind tablemap.Kind) *RowAssertion {
	a.t.Helper()
	v, ok := a.row.Get(name)
	switch {
	case !ok:
		a.t.Errorf("expected column %s to be present", name)
	case v.Kind() != kind:
		a.t.Errorf("expected column %s to be %s, got %s", name, kind, v.Kind())
	}
	return a
}

// LacksColumn asserts that the named column is absent.
func (a *RowAssertion) LacksColumn(name string) *RowAssertion {
	a.t.Helper()
	if v, ok := a.row.Get(name); ok {
		a.t.Errorf("expected column %s to be absent, got %s", name, v)
	}
	return a
}

// HasColumnCount asserts the number of columns.
func (a *RowAssertion) HasColumnCount(expected int) *RowAssertion {
	a.t.Helper()
	if n := len(a.row.Columns); n != expected {
		a.t.Errorf("expected %d columns, got %d: %v", expected, n, a.row.ColumnNames())
	}
	return a
}

// HasOverflow asserts that field was split into chunks columns and that the
// overflow column is present.
func (a *RowAssertion) HasOverflow(field string, chunks int) *RowAssertion {
	a.t.Helper()
	if _, ok := a.row.Get(tablemap.ExpandedColumnsName); !ok {
		a.t.Errorf("expected column %s to be present", tablemap.ExpandedColumnsName)
	}
	if _, ok := a.row.Get(field); ok {
		a.t.Errorf("expected overflowed field %s to have no single column", field)
	}
	for i := 0; i < chunks; i++ {
		if _, ok := a.row.Get(tablemap.ExpandedName(field, i)); !ok {
			a.t.Errorf("expected chunk column %s", tablemap.ExpandedName(field, i))
		}
	}
	if _, ok := a.row.Get(tablemap.ExpandedName(field, chunks)); ok {
		a.t.Errorf("expected %d chunks for %s, found more", chunks, field)
	}
	return a
}

// HasNoOverflow asserts that the row has no overflow column.
func (a *RowAssertion) HasNoOverflow() *RowAssertion {
	a.t.Helper()
	return a.LacksColumn(tablemap.ExpandedColumnsName)
}

// HasETag asserts that the row carries a non-empty ETag.
func (a *RowAssertion) HasETag() *RowAssertion {
	a.t.Helper()
	if a.row.ETag == "" {
		a.t.Error("expected row to have an ETag")
	}
	return a
}
