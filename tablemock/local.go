package tablemock

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/nisimpson/tablemap/ddbtable"
)

// DefaultLocalPort is the default port for DynamoDB Local.
const DefaultLocalPort = 8000

// LocalDynamoDB is a connection to a DynamoDB Local instance.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
	Port     int
}

// NewLocalClient creates a DynamoDB client for DynamoDB Local on localhost:port.
func NewLocalClient(port int) *dynamodb.Client {
	cfg := aws.Config{
		Region:      "us-east-1", // ignored by DynamoDB Local
		Credentials: aws.AnonymousCredentials{},
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("http://localhost:%d", port))
	})
}

// NewLocalDynamoDB creates a LocalDynamoDB for localhost:port.
func NewLocalDynamoDB(port int) *LocalDynamoDB {
	return &LocalDynamoDB{
		Client:   NewLocalClient(port),
		Endpoint: fmt.Sprintf("http://localhost:%d", port),
		Port:     port,
	}
}

// IsAvailable reports whether DynamoDB Local answers on the configured port.
func (l *LocalDynamoDB) IsAvailable(ctx context.Context) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", l.Port), 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()

	_, err = l.Client.ListTables(ctx, &dynamodb.ListTablesInput{})
	return err == nil
}

// WithLocalDynamoDB runs fn against DynamoDB Local on port. The test is skipped in
// short mode or when DynamoDB Local is not running.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	local := NewLocalDynamoDB(port)
	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}
	fn(local)
}

// WithIsolatedTable creates a uniquely named table on DynamoDB Local, runs fn with
// a ddbtable.Table bound to it and deletes the table afterwards.
func WithIsolatedTable(t *testing.T, local *LocalDynamoDB, fn func(table *ddbtable.Table)) {
	t.Helper()
	ctx := context.Background()
	name := NewTestTable("tablemap")
	wait := func(o *ddbtable.WaitOptions) {
		o.Timeout = 30 * time.Second
		o.MinDelay = 200 * time.Millisecond
	}

	if err := ddbtable.CreateTable(ctx, local.Client, name, wait); err != nil {
		t.Fatalf("Failed to create test table %s: %v", name, err)
	}
	defer func() {
		if err := ddbtable.DeleteTable(ctx, local.Client, name, wait); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", name, err)
		}
	}()

	fn(ddbtable.New(local.Client, name, func(o *ddbtable.Options) {
		o.Logger = zap.NewNop()
	}))
}

// NewTestTable generates a unique table name.
func NewTestTable(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
