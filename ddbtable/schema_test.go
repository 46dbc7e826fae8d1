package ddbtable_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisimpson/tablemap/ddbtable"
	"github.com/nisimpson/tablemap/tablemock"
)

func fastWait(o *ddbtable.WaitOptions) {
	o.Timeout = 5 * time.Second
	o.MinDelay = 10 * time.Millisecond
}

func TestCreateTableInput(t *testing.T) {
	in := ddbtable.CreateTableInput("orders")

	assert.Equal(t, "orders", aws.ToString(in.TableName))
	assert.Equal(t, types.BillingModePayPerRequest, in.BillingMode)
	require.Len(t, in.KeySchema, 2)
	assert.Equal(t, "PartitionKey", aws.ToString(in.KeySchema[0].AttributeName))
	assert.Equal(t, types.KeyTypeHash, in.KeySchema[0].KeyType)
	assert.Equal(t, "RowKey", aws.ToString(in.KeySchema[1].AttributeName))
	assert.Equal(t, types.KeyTypeRange, in.KeySchema[1].KeyType)
}

func TestCreateTable(t *testing.T) {
	ctx := context.Background()

	t.Run("waits until active", func(t *testing.T) {
		describes := 0
		mock := tablemock.NewMockClient(t)
		mock.CreateTableFunc = func(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			assert.Equal(t, "orders", aws.ToString(in.TableName))
			return &dynamodb.CreateTableOutput{}, nil
		}
		mock.DescribeTableFunc = func(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			describes++
			status := types.TableStatusCreating
			if describes > 1 {
				status = types.TableStatusActive
			}
			return &dynamodb.DescribeTableOutput{
				Table: &types.TableDescription{TableName: in.TableName, TableStatus: status},
			}, nil
		}

		require.NoError(t, ddbtable.CreateTable(ctx, mock, "orders", fastWait))
		assert.Equal(t, 2, describes)
	})

	t.Run("create fails", func(t *testing.T) {
		mock := tablemock.NewMockClient(t)
		mock.CreateTableFunc = func(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			return nil, &types.ResourceInUseException{Message: aws.String("exists")}
		}

		err := ddbtable.CreateTable(ctx, mock, "orders", fastWait)
		var inUse *types.ResourceInUseException
		assert.ErrorAs(t, err, &inUse)
		assert.ErrorContains(t, err, "failed to create table orders")
	})
}

func TestDeleteTable(t *testing.T) {
	ctx := context.Background()

	t.Run("waits until gone", func(t *testing.T) {
		mock := tablemock.NewMockClient(t)
		mock.DeleteTableFunc = func(ctx context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
			return &dynamodb.DeleteTableOutput{}, nil
		}
		mock.DescribeTableFunc = func(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, &types.ResourceNotFoundException{Message: aws.String("gone")}
		}

		require.NoError(t, ddbtable.DeleteTable(ctx, mock, "orders", fastWait))
	})

	t.Run("delete fails", func(t *testing.T) {
		mock := tablemock.NewMockClient(t)
		mock.DeleteTableFunc = func(ctx context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
			return nil, errors.New("access denied")
		}

		err := ddbtable.DeleteTable(ctx, mock, "orders", fastWait)
		assert.ErrorContains(t, err, "failed to delete table orders: access denied")
	})
}
