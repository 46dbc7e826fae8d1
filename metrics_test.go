package tablemap_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisimpson/tablemap"
	"github.com/nisimpson/tablemap/tablemock"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := tablemap.NewMetrics("test", reg)
	require.NoError(t, err)

	_, err = tablemap.NewMetrics("test", reg)
	assert.Error(t, err, "registering twice fails")

	unregistered, err := tablemap.NewMetrics("test", nil)
	require.NoError(t, err)
	assert.NotNil(t, unregistered.Lookups)
}

func TestMetrics_Recorded(t *testing.T) {
	ctx := context.Background()
	metrics, err := tablemap.NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)

	conv := tablemap.NewConverter(orderSchema,
		func(o *Order) tablemap.Key { return tablemap.Key{Partition: o.Customer, Row: o.ID} },
		func(o *tablemap.ConverterOptions) {
			o.Metrics = metrics
			o.MaxColumnLength = 16
		})
	table := tablemock.NewMemoryTable()
	repo := tablemap.NewRepository[Order](table, conv, tablemap.PartitionFilter("alice"),
		func(o *tablemap.RepositoryOptions) { o.Metrics = metrics })

	items := orders("alice", 3)
	items[0].Lines = []Line{{SKU: strings.Repeat("x", 20), Qty: 1}}
	table.Put(tablemap.NewRow("alice", "o002"))

	_, _, err = repo.UpsertMany(ctx, items)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RowsWritten.WithLabelValues("Order", "added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsWritten.WithLabelValues("Order", "updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransactionGroups.WithLabelValues("ok")))
	// [{"sku":"xxxxxxxxxxxxxxxxxxxx","qty":1}] is 40 bytes
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.OverflowChunks.WithLabelValues("Order")))

	_, err = repo.Get(ctx, "o000")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Lookups.WithLabelValues("miss")))

	actions := []tablemap.TransactionAction{{Type: tablemap.ActionAdd, Row: tablemap.NewRow("alice", "o000")}}
	_, err = tablemap.SubmitTransactionsBatched(ctx, table, actions,
		func(o *tablemap.BatchOptions) { o.Metrics = metrics })
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransactionGroups.WithLabelValues("failed")))
}
