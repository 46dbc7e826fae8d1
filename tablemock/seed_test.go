package tablemock_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisimpson/tablemap"
	"github.com/nisimpson/tablemap/tablemock"
	rowassert "github.com/nisimpson/tablemap/tablemock/assert"
)

const seedJSON = `[
  {
    "partitionKey": "orders",
    "rowKey": "O1",
    "columns": {
      "Customer": "acme",
      "Total": {"type": "Edm.Double", "value": 12.5},
      "Lines": {"type": "Edm.Int32", "value": 3},
      "Big": {"type": "Edm.Int64", "value": 9007199254740993},
      "Flag": {"type": "Edm.Byte", "value": 1},
      "Raw": {"type": "Edm.Binary", "value": "AQID"},
      "Ref": {"type": "Edm.Guid", "value": "6f1c0a9e-2f55-4a9b-9d1e-8b7a3c2d1e0f"},
      "Placed": {"type": "Edm.DateTime", "value": "2024-01-02T03:04:05Z"},
      "Seen": {"type": "Edm.DateTimeOffset", "value": "2024-01-02T03:04:05+02:00"},
      "Note": {"type": "Edm.String", "value": "typed"}
    }
  },
  {"partitionKey": "orders", "rowKey": "O2"}
]`

func TestParseSeed(t *testing.T) {
	rows, err := tablemock.ParseSeed(strings.NewReader(seedJSON))
	require.NoError(t, err)

	rowassert.Rows(t, rows).
		HasCount(2).
		AllInPartition("orders").
		Row("orders", "O1").
		HasColumnCount(10).
		HasColumn("Customer", tablemap.StringValue("acme")).
		HasColumn("Total", tablemap.DoubleValue(12.5)).
		HasColumn("Lines", tablemap.Int32Value(3)).
		HasColumn("Big", tablemap.Int64Value(9007199254740993)).
		HasColumn("Flag", tablemap.ByteValue(1)).
		HasColumn("Raw", tablemap.BinaryValue([]byte{1, 2, 3})).
		HasColumn("Ref", tablemap.GUIDValue(uuid.MustParse("6f1c0a9e-2f55-4a9b-9d1e-8b7a3c2d1e0f"))).
		HasColumn("Placed", tablemap.DateTimeValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))).
		HasColumnKind("Seen", tablemap.KindDateTimeOffset).
		HasColumn("Note", tablemap.StringValue("typed"))

	rowassert.Rows(t, rows).Row("orders", "O2").HasColumnCount(0)
}

func TestParseSeed_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not json", `{`, "failed to parse JSON document"},
		{"missing partition", `[{"rowKey": "r"}]`, "partitionKey"},
		{"missing row", `[{"partitionKey": "p"}]`, "rowKey"},
		{"unknown type", `[{"partitionKey": "p", "rowKey": "r", "columns": {"A": {"type": "Edm.Boolean", "value": true}}}]`, "column A"},
		{"bad number", `[{"partitionKey": "p", "rowKey": "r", "columns": {"A": {"type": "Edm.Int32", "value": "x"}}}]`, "column A"},
		{"non-string guid", `[{"partitionKey": "p", "rowKey": "r", "columns": {"A": {"type": "Edm.Guid", "value": 1}}}]`, "must be a string"},
		{"bare number", `[{"partitionKey": "p", "rowKey": "r", "columns": {"A": 1}}]`, "expected string or typed value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tablemock.ParseSeed(strings.NewReader(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSeedFromJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts every row", func(t *testing.T) {
		table := tablemock.NewMemoryTable()
		n, err := tablemock.SeedFromJSON(ctx, table, strings.NewReader(seedJSON))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, table.Calls("UpsertRow"))
		rowassert.Row(t, table.Row("orders", "O1")).HasETag()
	})

	t.Run("stops at first failure", func(t *testing.T) {
		table := tablemock.NewMemoryTable()
		table.Inject = func(string) error { return errors.New("read only") }

		n, err := tablemock.SeedFromJSON(ctx, table, strings.NewReader(seedJSON))
		assert.Zero(t, n)
		assert.ErrorContains(t, err, "failed to seed row orders/O1: read only")
	})
}
