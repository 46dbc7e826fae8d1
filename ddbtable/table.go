// Package ddbtable implements tablemap.TableClient on an Amazon DynamoDB table.
//
// The table uses PartitionKey (string) as its hash key and RowKey (string) as its
// range key. Every write stamps the item with a Timestamp and a fresh ETag. Column
// kinds other than string and binary are recorded in a sibling
// "<column>@odata.type" attribute so rows read back with their original kinds.
package ddbtable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nisimpson/tablemap"
)

// Client defines the DynamoDB operations used by Table.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Options configures a Table.
type Options struct {
	Logger  *zap.Logger          // Default is a no-op logger
	Clock   func() time.Time     // Source of write timestamps. Default is time.Now.
	NewETag func() tablemap.ETag // ETag generator. Default is a random UUID.
}

// Table is a tablemap.TableClient backed by a DynamoDB table.
type Table struct {
	client  Client
	name    string
	logger  *zap.Logger
	clock   func() time.Time
	newETag func() tablemap.ETag
}

var _ tablemap.TableClient = (*Table)(nil)

// New returns a Table for the DynamoDB table tableName.
func New(client Client, tableName string, opts ...func(*Options)) *Table {
	options := Options{
		Logger:  zap.NewNop(),
		Clock:   time.Now,
		NewETag: func() tablemap.ETag { return tablemap.ETag(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Table{
		client:  client,
		name:    tableName,
		logger:  options.Logger.With(zap.String("table", tableName)),
		clock:   options.Clock,
		newETag: options.NewETag,
	}
}

// Name returns the DynamoDB table name.
func (t *Table) Name() string { return t.name }

// GetRow implements tablemap.TableClient.
func (t *Table) GetRow(ctx context.Context, partitionKey, rowKey string) (*tablemap.Row, error) {
	t.logger.Debug("get row", zap.String("partition", partitionKey), zap.String("row", rowKey))

	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            keyOf(partitionKey, rowKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return UnmarshalRow(out.Item)
}

// AddRow implements tablemap.TableClient.
func (t *Table) AddRow(ctx context.Context, row *tablemap.Row) error {
	cond := expression.AttributeNotExists(expression.Name(tablemap.PropertyPartitionKey))
	err := t.put(ctx, row, &cond)

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%w: %w", tablemap.ErrRowExists, err)
	}
	return err
}

// UpsertRow implements tablemap.TableClient.
func (t *Table) UpsertRow(ctx context.Context, row *tablemap.Row) error {
	return t.put(ctx, row, nil)
}

// UpdateRow implements tablemap.TableClient.
func (t *Table) UpdateRow(ctx context.Context, row *tablemap.Row, etag tablemap.ETag) error {
	cond := updateCondition(etag)
	err := t.put(ctx, row, &cond)

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if condErr.Item == nil {
			return fmt.Errorf("%w: %w", tablemap.ErrRowNotFound, err)
		}
		return fmt.Errorf("%w: %w", tablemap.ErrPreconditionFailed, err)
	}
	return err
}

// DeleteRow implements tablemap.TableClient.
func (t *Table) DeleteRow(ctx context.Context, partitionKey, rowKey string) error {
	t.logger.Debug("delete row", zap.String("partition", partitionKey), zap.String("row", rowKey))

	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       keyOf(partitionKey, rowKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

func (t *Table) put(ctx context.Context, row *tablemap.Row, cond *expression.ConditionBuilder) error {
	t.logger.Debug("put row", zap.Stringer("key", row.Key()), zap.Bool("conditional", cond != nil))

	item, err := t.stamp(row)
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return fmt.Errorf("failed to build expression: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
		input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}

	if _, err := t.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// stamp marshals row with a new timestamp and ETag. The caller's row is not modified.
func (t *Table) stamp(row *tablemap.Row) (Item, error) {
	now := t.clock().UTC()
	stamped := *row
	stamped.Timestamp = &now
	stamped.ETag = t.newETag()

	item, err := MarshalRow(&stamped)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row %s: %w", row.Key(), err)
	}
	return item, nil
}

// updateCondition requires the row to exist and, unless etag is empty or
// ETagAny, to carry etag.
func updateCondition(etag tablemap.ETag) expression.ConditionBuilder {
	cond := expression.AttributeExists(expression.Name(tablemap.PropertyPartitionKey))
	if etag != "" && etag != tablemap.ETagAny {
		cond = cond.And(expression.Name(tablemap.PropertyETag).Equal(expression.Value(string(etag))))
	}
	return cond
}
