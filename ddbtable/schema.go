package ddbtable

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nisimpson/tablemap"
)

// DefaultWaitTimeout bounds how long CreateTable and DeleteTable wait for the
// table to change state.
const DefaultWaitTimeout = 2 * time.Minute

// SchemaClient defines the DynamoDB operations used to manage tables.
type SchemaClient interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// WaitOptions configures how CreateTable and DeleteTable wait.
type WaitOptions struct {
	Timeout  time.Duration // Default is DefaultWaitTimeout
	MinDelay time.Duration // Minimum delay between polls. Zero uses the SDK default.
}

func newWaitOptions(opts []func(*WaitOptions)) WaitOptions {
	options := WaitOptions{Timeout: DefaultWaitTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultWaitTimeout
	}
	return options
}

// CreateTableInput returns the definition of a pay-per-request table keyed by
// PartitionKey and RowKey.
func CreateTableInput(tableName string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(tablemap.PropertyPartitionKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String(tablemap.PropertyRowKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(tablemap.PropertyPartitionKey),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String(tablemap.PropertyRowKey),
				KeyType:       types.KeyTypeRange,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

// CreateTable creates the table and waits until it exists.
func CreateTable(ctx context.Context, client SchemaClient, tableName string, opts ...func(*WaitOptions)) error {
	options := newWaitOptions(opts)

	if _, err := client.CreateTable(ctx, CreateTableInput(tableName)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client, func(o *dynamodb.TableExistsWaiterOptions) {
		if options.MinDelay > 0 {
			o.MinDelay = options.MinDelay
		}
	})
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, options.Timeout)
	if err != nil {
		return fmt.Errorf("table %s did not become active: %w", tableName, err)
	}
	return nil
}

// DeleteTable deletes the table and waits until it no longer exists.
func DeleteTable(ctx context.Context, client SchemaClient, tableName string, opts ...func(*WaitOptions)) error {
	options := newWaitOptions(opts)

	if _, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(tableName)}); err != nil {
		return fmt.Errorf("failed to delete table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableNotExistsWaiter(client, func(o *dynamodb.TableNotExistsWaiterOptions) {
		if options.MinDelay > 0 {
			o.MinDelay = options.MinDelay
		}
	})
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, options.Timeout)
	if err != nil {
		return fmt.Errorf("table %s was not deleted: %w", tableName, err)
	}
	return nil
}
