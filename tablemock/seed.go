package tablemock

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nisimpson/tablemap"
)

// SeedDocument is the JSON form of a set of rows:
//
//	[
//	  {
//	    "partitionKey": "orders",
//	    "rowKey": "O1",
//	    "columns": {
//	      "Customer": "acme",
//	      "Total": {"type": "Edm.Double", "value": 12.5}
//	    }
//	  }
//	]
//
// A bare JSON string is a string column; any other kind uses the typed form.
// Binary values are base64 encoded and datetimes use RFC 3339.
type SeedDocument []SeedRow

// SeedRow is one row of a SeedDocument.
type SeedRow struct {
	PartitionKey string                       `json:"partitionKey"`
	RowKey       string                       `json:"rowKey"`
	Columns      map[string]gojson.RawMessage `json:"columns,omitempty"`
}

type typedColumn struct {
	Type  string            `json:"type"`
	Value gojson.RawMessage `json:"value"`
}

// ParseSeed reads a SeedDocument from r and converts it to rows.
func ParseSeed(r io.Reader) ([]*tablemap.Row, error) {
	var doc SeedDocument
	if err := gojson.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	rows := make([]*tablemap.Row, 0, len(doc))
	for i, sr := range doc {
		row, err := sr.toRow()
		if err != nil {
			return nil, fmt.Errorf("failed to convert row at index %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SeedFromJSON parses a SeedDocument from r and upserts every row into client.
// It returns the number of rows written.
func SeedFromJSON(ctx context.Context, client tablemap.TableClient, r io.Reader) (int, error) {
	rows, err := ParseSeed(r)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		if err := client.UpsertRow(ctx, row); err != nil {
			return count, fmt.Errorf("failed to seed row %s: %w", row.Key(), err)
		}
		count++
	}
	return count, nil
}

func (sr SeedRow) toRow() (*tablemap.Row, error) {
	if sr.PartitionKey == "" {
		return nil, fmt.Errorf("row missing required 'partitionKey' field")
	}
	if sr.RowKey == "" {
		return nil, fmt.Errorf("row missing required 'rowKey' field")
	}

	row := tablemap.NewRow(sr.PartitionKey, sr.RowKey)
	for name, raw := range sr.Columns {
		v, err := parseColumn(raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		row.Set(name, v)
	}
	return row, nil
}

func parseColumn(raw gojson.RawMessage) (tablemap.Value, error) {
	var s string
	if err := gojson.Unmarshal(raw, &s); err == nil {
		return tablemap.StringValue(s), nil
	}

	var col typedColumn
	if err := gojson.Unmarshal(raw, &col); err != nil {
		return tablemap.Value{}, fmt.Errorf("expected string or typed value: %w", err)
	}
	kind, err := tablemap.ParseKind(col.Type)
	if err != nil {
		return tablemap.Value{}, err
	}

	switch kind {
	case tablemap.KindByte:
		var b byte
		err = gojson.Unmarshal(col.Value, &b)
		return tablemap.ByteValue(b), err
	case tablemap.KindInt32:
		var i int32
		err = gojson.Unmarshal(col.Value, &i)
		return tablemap.Int32Value(i), err
	case tablemap.KindInt64:
		var i int64
		err = gojson.Unmarshal(col.Value, &i)
		return tablemap.Int64Value(i), err
	case tablemap.KindDouble:
		var f float64
		err = gojson.Unmarshal(col.Value, &f)
		return tablemap.DoubleValue(f), err
	}

	if err := gojson.Unmarshal(col.Value, &s); err != nil {
		return tablemap.Value{}, fmt.Errorf("%s value must be a string: %w", kind, err)
	}
	switch kind {
	case tablemap.KindString:
		return tablemap.StringValue(s), nil
	case tablemap.KindBinary:
		b, err := base64.StdEncoding.DecodeString(s)
		return tablemap.BinaryValue(b), err
	case tablemap.KindGUID:
		id, err := uuid.Parse(s)
		return tablemap.GUIDValue(id), err
	case tablemap.KindDateTime:
		t, err := time.Parse(time.RFC3339Nano, s)
		return tablemap.DateTimeValue(t), err
	default:
		t, err := time.Parse(time.RFC3339Nano, s)
		return tablemap.DateTimeOffsetValue(t), err
	}
}
