package tablemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableFilter_Render(t *testing.T) {
	tests := []struct {
		name          string
		filter        TableFilter
		want          string
		wantPartition string
		ok            bool
	}{
		{
			name:   "no partition",
			filter: TableFilter{},
		},
		{
			name:          "partition only",
			filter:        PartitionFilter("orders"),
			want:          "PartitionKey eq 'orders'",
			wantPartition: "PartitionKey eq 'orders'",
			ok:            true,
		},
		{
			name:          "partition and row",
			filter:        KeyFilter("orders", "42"),
			want:          "PartitionKey eq 'orders' and RowKey eq '42'",
			wantPartition: "PartitionKey eq 'orders'",
			ok:            true,
		},
		{
			name:          "empty partition value is still a partition",
			filter:        PartitionFilter(""),
			want:          "PartitionKey eq ''",
			wantPartition: "PartitionKey eq ''",
			ok:            true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.filter.Render()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)

			partitionOnly, ok := tt.filter.RenderPartitionOnly()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantPartition, partitionOnly)
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    TableFilter
		wantErr bool
	}{
		{name: "empty selects all", expr: "", want: TableFilter{}},
		{name: "partition", expr: "PartitionKey eq 'a'", want: PartitionFilter("a")},
		{name: "partition and row", expr: "PartitionKey eq 'a' and RowKey eq 'b c'", want: KeyFilter("a", "b c")},
		{name: "surrounding space", expr: "  PartitionKey eq 'a'  ", want: PartitionFilter("a")},
		{name: "wrong property", expr: "RowKey eq 'a'", wantErr: true},
		{name: "unsupported operator", expr: "PartitionKey gt 'a'", wantErr: true},
		{name: "unterminated quote", expr: "PartitionKey eq 'a", wantErr: true},
		{name: "missing closing quote after row", expr: "PartitionKey eq 'a' and RowKey eq 'b", wantErr: true},
		{name: "quote inside partition", expr: "PartitionKey eq 'o'brien'", want: PartitionFilter("o'brien")},
		{name: "quotes inside both values", expr: "PartitionKey eq 'o'brien' and RowKey eq 'it's'", want: KeyFilter("o'brien", "it's")},
		{name: "other clause stays in the partition value", expr: "PartitionKey eq 'a' and Other eq 'b'", want: PartitionFilter("a' and Other eq 'b")},
		{name: "empty row clause", expr: "PartitionKey eq 'a' and RowKey eq ''", want: PartitionFilter("a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilter_RoundTrip(t *testing.T) {
	filters := []TableFilter{
		PartitionFilter("p"),
		KeyFilter("p", "r"),
		PartitionFilter("o'brien"),
		KeyFilter("o'brien", "it's"),
		KeyFilter("a'b", "'"),
		PartitionFilter("'"),
	}
	for _, f := range filters {
		expr, ok := f.Render()
		require.True(t, ok)
		got, err := ParseFilter(expr)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr string
	}{
		{name: "valid", key: Key{Partition: "orders", Row: "2024-01-01|42"}},
		{name: "empty parts are valid", key: Key{}},
		{name: "slash in partition", key: Key{Partition: "a/b", Row: "r"}, wantErr: "invalid partition key"},
		{name: "backslash in row", key: Key{Partition: "p", Row: `a\b`}, wantErr: "invalid row key"},
		{name: "hash in row", key: Key{Partition: "p", Row: "a#b"}, wantErr: "invalid row key"},
		{name: "question mark in partition", key: Key{Partition: "a?", Row: "r"}, wantErr: "invalid partition key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "p/r", Key{Partition: "p", Row: "r"}.String())
}
