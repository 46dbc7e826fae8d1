// Package tablemap persists typed Go records in a partitioned, wide-column table
// service whose rows are string-keyed column maps with per-column size limits and
// bounded batch transactions.
//
// # Key Concepts
//
// A record type is described once by a Schema: an ordered table of fields, each
// either native (stored directly as a typed column) or complex (encoded to text
// by a Codec). A Converter maps records to rows and back. Complex values whose
// encoded text exceeds MaxColumnLength are split into chunk columns:
//   - F__0 … F__(N-1): the chunks of field F, concatenated in index order on read
//   - __ExpandedColumns: codec-encoded map from field name to chunk count
//
// A Repository combines a TableClient, a RowMapper and a default TableFilter to
// offer validated bulk upserts, point lookups and paged reads.
//
// # Basic Usage
//
//	type Order struct {
//	    Customer string
//	    ID       string
//	    Total    float64
//	    Lines    []OrderLine
//	}
//
//	var orderSchema = tablemap.MustSchema("Order",
//	    tablemap.Native("Total", func(o *Order) *float64 { return &o.Total }),
//	    tablemap.Complex("Lines", func(o *Order) *[]OrderLine { return &o.Lines }),
//	)
//
//	conv := tablemap.NewConverter(orderSchema, func(o *Order) tablemap.Key {
//	    return tablemap.Key{Partition: o.Customer, Row: o.ID}
//	})
//	repo := tablemap.NewRepository(client, conv, tablemap.PartitionFilter("acme"))
//	added, updated, err := repo.UpsertMany(ctx, orders)
//
// # Batching
//
// SubmitTransactionsBatched splits actions into groups of at most MaxBatchSize.
// Each group is its own transaction; a failing group does not roll back groups
// submitted before it.
//
// # Store clients
//
// The ddbtable package implements TableClient on Amazon DynamoDB. The tablemock
// package provides an in-memory TableClient and test helpers.
package tablemap
