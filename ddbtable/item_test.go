package ddbtable_test

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisimpson/tablemap"
	"github.com/nisimpson/tablemap/ddbtable"
	rowassert "github.com/nisimpson/tablemap/tablemock/assert"
)

func sampleRow() *tablemap.Row {
	ts := time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)
	row := tablemap.NewRow("orders", "42")
	row.Timestamp = &ts
	row.ETag = "etag-1"
	row.Set("Name", tablemap.StringValue("widget"))
	row.Set("Blob", tablemap.BinaryValue([]byte{1, 2, 3}))
	row.Set("Flags", tablemap.ByteValue(7))
	row.Set("Count", tablemap.Int32Value(-3))
	row.Set("Total", tablemap.Int64Value(1<<40))
	row.Set("Price", tablemap.DoubleValue(2.5))
	row.Set("Ref", tablemap.GUIDValue(uuid.MustParse("6f1c0a9e-2f55-4a9b-9d1e-8b7a3c2d1e0f")))
	row.Set("Created", tablemap.DateTimeValue(ts))
	row.Set("Seen", tablemap.DateTimeOffsetValue(ts.In(time.FixedZone("", -7*3600))))
	return row
}

func TestMarshalRow(t *testing.T) {
	item, err := ddbtable.MarshalRow(sampleRow())
	require.NoError(t, err)

	assert.Equal(t, &types.AttributeValueMemberS{Value: "orders"}, item["PartitionKey"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "42"}, item["RowKey"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2024-02-03T04:05:06.000000007Z"}, item["Timestamp"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "etag-1"}, item["ETag"])

	t.Run("string and binary carry no type", func(t *testing.T) {
		assert.Equal(t, &types.AttributeValueMemberS{Value: "widget"}, item["Name"])
		assert.Equal(t, &types.AttributeValueMemberB{Value: []byte{1, 2, 3}}, item["Blob"])
		assert.NotContains(t, item, "Name"+ddbtable.TypeSuffix)
		assert.NotContains(t, item, "Blob"+ddbtable.TypeSuffix)
	})

	t.Run("other kinds are tagged", func(t *testing.T) {
		want := map[string]string{
			"Flags":   "Edm.Byte",
			"Count":   "Edm.Int32",
			"Total":   "Edm.Int64",
			"Price":   "Edm.Double",
			"Ref":     "Edm.Guid",
			"Created": "Edm.DateTime",
			"Seen":    "Edm.DateTimeOffset",
		}
		for name, kind := range want {
			assert.Equal(t, &types.AttributeValueMemberS{Value: kind}, item[name+ddbtable.TypeSuffix], name)
		}
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1099511627776"}, item["Total"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "2024-02-03T04:05:06.000000007Z"}, item["Created"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "2024-02-02T21:05:06.000000007-07:00"}, item["Seen"])
	})

	t.Run("unstamped row", func(t *testing.T) {
		item, err := ddbtable.MarshalRow(tablemap.NewRow("p", "r"))
		require.NoError(t, err)
		assert.Len(t, item, 2)
	})
}

func TestUnmarshalRow_RoundTrip(t *testing.T) {
	want := sampleRow()
	item, err := ddbtable.MarshalRow(want)
	require.NoError(t, err)

	got, err := ddbtable.UnmarshalRow(item)
	require.NoError(t, err)

	assert.Equal(t, want.Key(), got.Key())
	assert.Equal(t, want.ETag, got.ETag)
	require.NotNil(t, got.Timestamp)
	assert.True(t, want.Timestamp.Equal(*got.Timestamp))
	assert.Equal(t, want.ColumnNames(), got.ColumnNames())

	r := rowassert.Row(t, got)
	for _, name := range want.ColumnNames() {
		v, _ := want.Get(name)
		r.HasColumn(name, v)
	}
}

func TestUnmarshalRow_UntypedNumbers(t *testing.T) {
	row, err := ddbtable.UnmarshalRow(ddbtable.Item{
		"PartitionKey": &types.AttributeValueMemberS{Value: "p"},
		"RowKey":       &types.AttributeValueMemberS{Value: "r"},
		"Whole":        &types.AttributeValueMemberN{Value: "12"},
		"Fraction":     &types.AttributeValueMemberN{Value: "1.25"},
	})
	require.NoError(t, err)

	rowassert.Row(t, row).
		HasColumn("Whole", tablemap.Int64Value(12)).
		HasColumn("Fraction", tablemap.DoubleValue(1.25))
}

func TestUnmarshalRow_Errors(t *testing.T) {
	tests := []struct {
		name string
		item ddbtable.Item
	}{
		{
			name: "unknown type tag",
			item: ddbtable.Item{
				"PartitionKey":            &types.AttributeValueMemberS{Value: "p"},
				"RowKey":                  &types.AttributeValueMemberS{Value: "r"},
				"A":                       &types.AttributeValueMemberS{Value: "x"},
				"A" + ddbtable.TypeSuffix: &types.AttributeValueMemberS{Value: "Edm.Boolean"},
			},
		},
		{
			name: "unsupported attribute type",
			item: ddbtable.Item{
				"PartitionKey": &types.AttributeValueMemberS{Value: "p"},
				"RowKey":       &types.AttributeValueMemberS{Value: "r"},
				"A":            &types.AttributeValueMemberBOOL{Value: true},
			},
		},
		{
			name: "bad guid",
			item: ddbtable.Item{
				"PartitionKey":            &types.AttributeValueMemberS{Value: "p"},
				"RowKey":                  &types.AttributeValueMemberS{Value: "r"},
				"A":                       &types.AttributeValueMemberS{Value: "not-a-guid"},
				"A" + ddbtable.TypeSuffix: &types.AttributeValueMemberS{Value: "Edm.Guid"},
			},
		},
		{
			name: "bad timestamp",
			item: ddbtable.Item{
				"PartitionKey": &types.AttributeValueMemberS{Value: "p"},
				"RowKey":       &types.AttributeValueMemberS{Value: "r"},
				"Timestamp":    &types.AttributeValueMemberS{Value: "yesterday"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ddbtable.UnmarshalRow(tt.item)
			assert.Error(t, err)
		})
	}
}
