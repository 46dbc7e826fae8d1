package ddbtable

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/nisimpson/tablemap"
)

// QueryRows implements tablemap.TableClient. A filter with a partition becomes a
// Query on the partition key (and the row key, when present); the empty filter
// scans the table.
func (t *Table) QueryRows(ctx context.Context, filter string, pageSize int, continuation string) (tablemap.Page, error) {
	f, err := tablemap.ParseFilter(filter)
	if err != nil {
		return tablemap.Page{}, err
	}

	startKey, err := DecodeContinuation(continuation)
	if err != nil {
		return tablemap.Page{}, err
	}

	var limit *int32
	if pageSize > 0 {
		limit = aws.Int32(int32(pageSize))
	}

	t.logger.Debug("query rows", zap.Stringer("filter", f), zap.Int("pageSize", pageSize))

	var (
		items   []Item
		lastKey Item
	)
	if partition, ok := f.Partition(); ok {
		keyCond := expression.Key(tablemap.PropertyPartitionKey).Equal(expression.Value(partition))
		if row, ok := f.Row(); ok {
			keyCond = keyCond.And(expression.Key(tablemap.PropertyRowKey).Equal(expression.Value(row)))
		}
		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
		if err != nil {
			return tablemap.Page{}, fmt.Errorf("failed to build expression: %w", err)
		}

		out, err := t.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(t.name),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
			Limit:                     limit,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return tablemap.Page{}, fmt.Errorf("failed to query items: %w", err)
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	} else {
		out, err := t.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(t.name),
			ConsistentRead:    aws.Bool(true),
			Limit:             limit,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return tablemap.Page{}, fmt.Errorf("failed to scan items: %w", err)
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	}

	page := tablemap.Page{Rows: make([]*tablemap.Row, 0, len(items))}
	for _, item := range items {
		row, err := UnmarshalRow(item)
		if err != nil {
			return tablemap.Page{}, err
		}
		page.Rows = append(page.Rows, row)
	}

	page.ContinuationToken, err = EncodeContinuation(lastKey)
	if err != nil {
		return tablemap.Page{}, err
	}
	return page, nil
}

// EncodeContinuation converts a last evaluated key into an opaque token. A nil or
// empty key yields the empty token.
func EncodeContinuation(lastKey Item) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}

	var key map[string]string
	if err := attributevalue.UnmarshalMap(lastKey, &key); err != nil {
		return "", fmt.Errorf("failed to unmarshal last key: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(key); err != nil {
		return "", fmt.Errorf("failed to encode last key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeContinuation converts a token produced by EncodeContinuation back into an
// exclusive start key. The empty token yields nil.
func DecodeContinuation(token string) (Item, error) {
	if token == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid continuation token: %w", err)
	}

	var key map[string]string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&key); err != nil {
		return nil, fmt.Errorf("invalid continuation token: %w", err)
	}

	item, err := attributevalue.MarshalMap(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal start key: %w", err)
	}
	return item, nil
}
