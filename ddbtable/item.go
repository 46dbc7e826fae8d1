package ddbtable

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/nisimpson/tablemap"
)

// TypeSuffix is appended to a column name to form the attribute holding the
// column's EDM type name. String and binary columns carry no type attribute.
const TypeSuffix = "@odata.type"

// Item is a DynamoDB item.
type Item = map[string]types.AttributeValue

// MarshalRow converts row into an item. The Timestamp and ETag of row are written
// when set.
func MarshalRow(row *tablemap.Row) (Item, error) {
	item := make(Item, 2+2*len(row.Columns))
	item[tablemap.PropertyPartitionKey] = &types.AttributeValueMemberS{Value: row.PartitionKey}
	item[tablemap.PropertyRowKey] = &types.AttributeValueMemberS{Value: row.RowKey}
	if row.Timestamp != nil {
		item[tablemap.PropertyTimestamp] = &types.AttributeValueMemberS{Value: row.Timestamp.UTC().Format(time.RFC3339Nano)}
	}
	if row.ETag != "" {
		item[tablemap.PropertyETag] = &types.AttributeValueMemberS{Value: string(row.ETag)}
	}

	for name, value := range row.Columns {
		av, err := marshalValue(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column %s: %w", name, err)
		}
		item[name] = av
		if k := value.Kind(); k != tablemap.KindString && k != tablemap.KindBinary {
			item[name+TypeSuffix] = &types.AttributeValueMemberS{Value: k.String()}
		}
	}
	return item, nil
}

func marshalValue(v tablemap.Value) (types.AttributeValue, error) {
	switch x := v.Interface().(type) {
	case string:
		return &types.AttributeValueMemberS{Value: x}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: x}, nil
	case uuid.UUID:
		return &types.AttributeValueMemberS{Value: x.String()}, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: x.Format(time.RFC3339Nano)}, nil
	case byte, int32, int64, float64:
		return attributevalue.Marshal(x)
	default:
		return nil, fmt.Errorf("unsupported column value %s", v)
	}
}

// UnmarshalRow converts item into a row.
func UnmarshalRow(item Item) (*tablemap.Row, error) {
	var partition, rowKey string
	if err := attributevalue.Unmarshal(item[tablemap.PropertyPartitionKey], &partition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", tablemap.PropertyPartitionKey, err)
	}
	if err := attributevalue.Unmarshal(item[tablemap.PropertyRowKey], &rowKey); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", tablemap.PropertyRowKey, err)
	}

	row := tablemap.NewRow(partition, rowKey)
	if av, ok := item[tablemap.PropertyTimestamp].(*types.AttributeValueMemberS); ok {
		ts, err := time.Parse(time.RFC3339Nano, av.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", tablemap.PropertyTimestamp, err)
		}
		row.Timestamp = &ts
	}
	if av, ok := item[tablemap.PropertyETag].(*types.AttributeValueMemberS); ok {
		row.ETag = tablemap.ETag(av.Value)
	}

	for name, av := range item {
		switch name {
		case tablemap.PropertyPartitionKey, tablemap.PropertyRowKey, tablemap.PropertyTimestamp, tablemap.PropertyETag:
			continue
		}
		if strings.HasSuffix(name, TypeSuffix) {
			continue
		}

		kind := tablemap.Kind(0)
		if tag, ok := item[name+TypeSuffix].(*types.AttributeValueMemberS); ok {
			k, err := tablemap.ParseKind(tag.Value)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			kind = k
		}

		value, err := unmarshalValue(av, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal column %s: %w", name, err)
		}
		row.Set(name, value)
	}
	return row, nil
}

// unmarshalValue decodes av as kind. A zero kind infers the kind from the
// attribute type.
func unmarshalValue(av types.AttributeValue, kind tablemap.Kind) (tablemap.Value, error) {
	if kind == 0 {
		switch x := av.(type) {
		case *types.AttributeValueMemberS:
			kind = tablemap.KindString
		case *types.AttributeValueMemberB:
			kind = tablemap.KindBinary
		case *types.AttributeValueMemberN:
			kind = tablemap.KindDouble
			if _, err := strconv.ParseInt(x.Value, 10, 64); err == nil {
				kind = tablemap.KindInt64
			}
		default:
			return tablemap.Value{}, fmt.Errorf("unsupported attribute type %T", av)
		}
	}

	switch kind {
	case tablemap.KindString:
		var s string
		err := attributevalue.Unmarshal(av, &s)
		return tablemap.StringValue(s), err
	case tablemap.KindBinary:
		var b []byte
		err := attributevalue.Unmarshal(av, &b)
		return tablemap.BinaryValue(b), err
	case tablemap.KindByte:
		var b byte
		err := attributevalue.Unmarshal(av, &b)
		return tablemap.ByteValue(b), err
	case tablemap.KindInt32:
		var i int32
		err := attributevalue.Unmarshal(av, &i)
		return tablemap.Int32Value(i), err
	case tablemap.KindInt64:
		var i int64
		err := attributevalue.Unmarshal(av, &i)
		return tablemap.Int64Value(i), err
	case tablemap.KindDouble:
		var f float64
		err := attributevalue.Unmarshal(av, &f)
		return tablemap.DoubleValue(f), err
	case tablemap.KindGUID:
		var s string
		if err := attributevalue.Unmarshal(av, &s); err != nil {
			return tablemap.Value{}, err
		}
		id, err := uuid.Parse(s)
		return tablemap.GUIDValue(id), err
	case tablemap.KindDateTime, tablemap.KindDateTimeOffset:
		var s string
		if err := attributevalue.Unmarshal(av, &s); err != nil {
			return tablemap.Value{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return tablemap.Value{}, err
		}
		if kind == tablemap.KindDateTime {
			return tablemap.DateTimeValue(t), nil
		}
		return tablemap.DateTimeOffsetValue(t), nil
	default:
		return tablemap.Value{}, fmt.Errorf("unsupported column kind %s", kind)
	}
}

// keyOf returns the primary key attributes of a row.
func keyOf(partition, rowKey string) Item {
	return Item{
		tablemap.PropertyPartitionKey: &types.AttributeValueMemberS{Value: partition},
		tablemap.PropertyRowKey:       &types.AttributeValueMemberS{Value: rowKey},
	}
}
