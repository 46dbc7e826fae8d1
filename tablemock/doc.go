// Package tablemock provides test support for code built on tablemap.
//
// # MemoryTable
//
// MemoryTable is an in-memory tablemap.TableClient with atomic transactions,
// ETag checks and paged queries. It records every transaction group it receives:
//
//	table := tablemock.NewMemoryTable()
//	repo := tablemap.NewRepository(table, conv, tablemap.PartitionFilter("orders"))
//	_, _, err := repo.UpsertMany(ctx, orders)
//	groups := table.Submissions()
//
// # MockClient
//
// MockClient mocks the DynamoDB API used by ddbtable. Operations that are not
// stubbed fail the test:
//
//	mock := tablemock.NewMockClient(t)
//	mock.GetFunc = func(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
//	    return &dynamodb.GetItemOutput{}, nil
//	}
//	table := ddbtable.New(mock, "orders")
//
// # Seeding
//
// SeedFromJSON loads rows described by a SeedDocument into any TableClient.
//
// # DynamoDB Local
//
// WithLocalDynamoDB and WithIsolatedTable run integration tests against DynamoDB
// Local, skipping them when it is not running or in short mode.
package tablemock
