package tablemap

import (
	"fmt"
	"regexp"
	"strings"
)

// invalidKeyPattern matches the characters the table service disallows in key fields.
var invalidKeyPattern = regexp.MustCompile(`[/\\#?]`)

// Key is the two-part identity of a row.
type Key struct {
	Partition string
	Row       string
}

func (k Key) String() string {
	return k.Partition + "/" + k.Row
}

// Validate returns an error if either part contains '/', '\', '#' or '?'.
func (k Key) Validate() error {
	if err := ValidateKey(k.Partition); err != nil {
		return fmt.Errorf("invalid partition key: %w", err)
	}
	if err := ValidateKey(k.Row); err != nil {
		return fmt.Errorf("invalid row key: %w", err)
	}
	return nil
}

// ValidateKey returns an error if s contains a character disallowed in key fields.
func ValidateKey(s string) error {
	if loc := invalidKeyPattern.FindStringIndex(s); loc != nil {
		return fmt.Errorf("%q contains disallowed character %q", s, s[loc[0]:loc[1]])
	}
	return nil
}

// TableFilter selects rows by partition and, optionally, row key.
// The zero TableFilter selects every row.
type TableFilter struct {
	partition    string
	row          string
	hasPartition bool
}

// PartitionFilter selects every row of the given partition.
func PartitionFilter(partition string) TableFilter {
	return TableFilter{partition: partition, hasPartition: true}
}

// KeyFilter selects a single row.
func KeyFilter(partition, row string) TableFilter {
	return TableFilter{partition: partition, row: row, hasPartition: true}
}

// Partition returns the partition value, if any.
func (f TableFilter) Partition() (string, bool) {
	return f.partition, f.hasPartition
}

// Row returns the row value, if any.
func (f TableFilter) Row() (string, bool) {
	return f.row, f.row != ""
}

// Render returns the filter expression understood by the table service's query layer.
// It reports false when the filter has no partition. Quote characters are not escaped.
func (f TableFilter) Render() (string, bool) {
	expr, ok := f.RenderPartitionOnly()
	if !ok {
		return "", false
	}
	if f.row != "" {
		expr += fmt.Sprintf(" and %s eq '%s'", PropertyRowKey, f.row)
	}
	return expr, true
}

// RenderPartitionOnly renders the partition predicate and ignores any row value.
func (f TableFilter) RenderPartitionOnly() (string, bool) {
	if !f.hasPartition {
		return "", false
	}
	return fmt.Sprintf("%s eq '%s'", PropertyPartitionKey, f.partition), true
}

func (f TableFilter) String() string {
	if expr, ok := f.Render(); ok {
		return expr
	}
	return "<all rows>"
}

// ParseFilter parses an expression produced by Render. The empty string
// selects every row. Only equality on PartitionKey, optionally followed by
// equality on RowKey, is accepted. Values are read between fixed anchors, so
// they may contain quotes; the first "' and RowKey eq '" ends the partition value.
func ParseFilter(expr string) (TableFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return TableFilter{}, nil
	}

	partitionPrefix := PropertyPartitionKey + " eq '"
	if !strings.HasPrefix(expr, partitionPrefix) || !strings.HasSuffix(expr, "'") || len(expr) < len(partitionPrefix)+1 {
		return TableFilter{}, fmt.Errorf("invalid filter %q: expected %s eq '<value>'", expr, PropertyPartitionKey)
	}
	body := expr[len(partitionPrefix) : len(expr)-1]

	partition, row, hasRow := strings.Cut(body, "' and "+PropertyRowKey+" eq '")
	if !hasRow || row == "" {
		return PartitionFilter(partition), nil
	}
	return KeyFilter(partition, row), nil
}
