package tablemap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RowMapper converts records of type T to rows and back. *Converter[T] implements it.
type RowMapper[T any] interface {
	Encode(item *T) (*Row, error)
	Decode(row *Row) (*T, error)
	TypeName() string
}

// RepositoryOptions configures a Repository.
type RepositoryOptions struct {
	Logger          *zap.Logger // Default is a no-op logger
	Metrics         *Metrics
	LookupGroupSize int // Concurrent point lookups per group. Default is 50.
	BatchSize       int // Actions per transaction group. Default is MaxBatchSize.
	PageSize        int // Rows per query page. Default is 1000.
}

// Repository persists records of type T in a table. The key filter selects the
// rows that make up the collection and supplies the default partition for point
// lookups.
type Repository[T any] struct {
	client    TableClient
	mapper    RowMapper[T]
	keyFilter TableFilter
	opts      RepositoryOptions
}

// NewRepository creates a repository over client.
func NewRepository[T any](client TableClient, mapper RowMapper[T], keyFilter TableFilter, opts ...func(*RepositoryOptions)) *Repository[T] {
	options := RepositoryOptions{
		LookupGroupSize: 50,
		BatchSize:       MaxBatchSize,
		PageSize:        1000,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.LookupGroupSize <= 0 {
		options.LookupGroupSize = 50
	}
	if options.PageSize <= 0 {
		options.PageSize = 1000
	}

	return &Repository[T]{
		client:    client,
		mapper:    mapper,
		keyFilter: keyFilter,
		opts:      options,
	}
}

// UpsertMany inserts or replaces items in transaction groups and reports which
// items were created and which replaced an existing row, in input order.
//
// Rows are validated before anything is sent: duplicate keys and keys containing
// disallowed characters fail with a *ValidationError. A failed submission is
// returned as a *TransactionError; groups submitted before the failure remain
// committed.
func (r *Repository[T]) UpsertMany(ctx context.Context, items []*T) (added, updated []*T, err error) {
	if len(items) == 0 {
		return []*T{}, []*T{}, nil
	}

	rows := make([]*Row, len(items))
	for i, item := range items {
		row, err := r.mapper.Encode(item)
		if err != nil {
			return nil, nil, err
		}
		rows[i] = row
	}

	if err := r.validate(rows); err != nil {
		return nil, nil, err
	}

	actions := make([]TransactionAction, len(rows))
	for i, row := range rows {
		actions[i] = TransactionAction{Type: ActionUpsertReplace, Row: row}
	}

	r.opts.Logger.Debug("upserting rows",
		zap.String("type", r.mapper.TypeName()),
		zap.Int("rows", len(rows)))

	responses, err := SubmitTransactionsBatched(ctx, r.client, actions, func(o *BatchOptions) {
		o.Size = r.opts.BatchSize
		o.Logger = r.opts.Logger
		o.Metrics = r.opts.Metrics
	})
	if err != nil {
		txErr := &TransactionError{
			TypeName:   r.mapper.TypeName(),
			Code:       ErrorCode(err),
			Diagnostic: sizeDiagnostic(rows),
			Err:        err,
		}
		r.opts.Logger.Warn("upsert failed",
			zap.String("type", txErr.TypeName),
			zap.String("code", txErr.Code),
			zap.Int("rows", len(rows)),
			zap.Error(err))
		return nil, nil, txErr
	}

	added = make([]*T, 0, len(items))
	updated = make([]*T, 0, len(items))
	for i, resp := range responses {
		if resp.Status == StatusCreated {
			added = append(added, items[i])
		} else {
			updated = append(updated, items[i])
		}
	}
	r.opts.Metrics.observeWrites(r.mapper.TypeName(), len(added), len(updated))

	return added, updated, nil
}

// validate reports every duplicate and every invalid key among rows.
func (r *Repository[T]) validate(rows []*Row) error {
	var (
		duplicates []Key
		invalid    []Key
	)
	seen := make(map[Key]int, len(rows))
	for _, row := range rows {
		key := row.Key()
		seen[key]++
		if seen[key] == 2 {
			duplicates = append(duplicates, key)
		}
		if key.Validate() != nil {
			invalid = append(invalid, key)
		}
	}

	if len(duplicates) == 0 && len(invalid) == 0 {
		return nil
	}
	return &ValidationError{
		TypeName:    r.mapper.TypeName(),
		Duplicates:  duplicates,
		InvalidKeys: invalid,
	}
}

// sizeDiagnostic lists "partition/row: size" for each row. It never fails; any
// failure while formatting yields "N/A".
func sizeDiagnostic(rows []*Row) (out string) {
	defer func() {
		if recover() != nil {
			out = "N/A"
		}
	}()

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = fmt.Sprintf("%s: %d", row.Key(), row.Size())
	}
	return strings.Join(lines, ", ")
}

// Get returns the record with the given row key in the default partition, or nil
// when it does not exist.
func (r *Repository[T]) Get(ctx context.Context, rowKey string) (*T, error) {
	partition, ok := r.keyFilter.Partition()
	if !ok {
		return nil, ErrNoPartition
	}
	return r.get(ctx, partition, rowKey)
}

func (r *Repository[T]) get(ctx context.Context, partition, rowKey string) (*T, error) {
	row, err := r.client.GetRow(ctx, partition, rowKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get row %s/%s: %w", partition, rowKey, err)
	}
	r.opts.Metrics.observeLookup(row != nil)
	if row == nil {
		return nil, nil
	}
	return r.mapper.Decode(row)
}

// GetByRowKeys looks up rowKeys in the default partition. See GetByRowKeysIn.
func (r *Repository[T]) GetByRowKeys(ctx context.Context, rowKeys []string) (map[string]*T, error) {
	partition, ok := r.keyFilter.Partition()
	if !ok {
		return nil, ErrNoPartition
	}
	return r.GetByRowKeysIn(ctx, partition, rowKeys)
}

// GetByRowKeysIn looks up rowKeys in partition. Keys are processed in groups;
// the lookups of a group run concurrently and the whole group completes before
// the next one starts. Every requested key is present in the result, mapped to
// nil when no row exists.
func (r *Repository[T]) GetByRowKeysIn(ctx context.Context, partition string, rowKeys []string) (map[string]*T, error) {
	result := make(map[string]*T, len(rowKeys))
	size := r.opts.LookupGroupSize

	for i := 0; i < len(rowKeys); i += size {
		end := i + size
		if end > len(rowKeys) {
			end = len(rowKeys)
		}
		group := rowKeys[i:end]
		found := make([]*T, len(group))

		g, gctx := errgroup.WithContext(ctx)
		for j, rowKey := range group {
			g.Go(func() error {
				item, err := r.get(gctx, partition, rowKey)
				if err != nil {
					return err
				}
				found[j] = item
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for j, rowKey := range group {
			result[rowKey] = found[j]
		}
	}

	return result, nil
}

// GetAll returns every record matching the repository's key filter.
func (r *Repository[T]) GetAll(ctx context.Context) ([]*T, error) {
	rows, err := r.queryAll(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*T, 0, len(rows))
	for _, row := range rows {
		item, err := r.mapper.Decode(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository[T]) queryAll(ctx context.Context) ([]*Row, error) {
	filter, _ := r.keyFilter.Render()
	var (
		rows  []*Row
		token string
	)
	for {
		page, err := r.client.QueryRows(ctx, filter, r.opts.PageSize, token)
		if err != nil {
			return nil, fmt.Errorf("failed to query rows: %w", err)
		}
		rows = append(rows, page.Rows...)
		if page.ContinuationToken == "" {
			return rows, nil
		}
		token = page.ContinuationToken
	}
}

// Add inserts item and returns its row key. It fails with ErrRowExists if the key is taken.
func (r *Repository[T]) Add(ctx context.Context, item *T) (string, error) {
	row, err := r.encode(item)
	if err != nil {
		return "", err
	}
	if err := r.client.AddRow(ctx, row); err != nil {
		return "", fmt.Errorf("failed to add row %s: %w", row.Key(), err)
	}
	return row.RowKey, nil
}

// Upsert inserts or replaces item and returns its row key.
func (r *Repository[T]) Upsert(ctx context.Context, item *T) (string, error) {
	row, err := r.encode(item)
	if err != nil {
		return "", err
	}
	if err := r.client.UpsertRow(ctx, row); err != nil {
		return "", fmt.Errorf("failed to upsert row %s: %w", row.Key(), err)
	}
	return row.RowKey, nil
}

// Update replaces the stored row of item regardless of its ETag.
func (r *Repository[T]) Update(ctx context.Context, item *T) error {
	return r.UpdateIfMatch(ctx, item, ETagAny)
}

// UpdateIfMatch replaces the stored row of item if its ETag equals etag. It fails
// with ErrPreconditionFailed on a mismatch and ErrRowNotFound when the row is missing.
func (r *Repository[T]) UpdateIfMatch(ctx context.Context, item *T, etag ETag) error {
	row, err := r.encode(item)
	if err != nil {
		return err
	}
	if err := r.client.UpdateRow(ctx, row, etag); err != nil {
		return fmt.Errorf("failed to update row %s: %w", row.Key(), err)
	}
	return nil
}

// Remove deletes the row of item.
func (r *Repository[T]) Remove(ctx context.Context, item *T) error {
	row, err := r.encode(item)
	if err != nil {
		return err
	}
	if err := r.client.DeleteRow(ctx, row.PartitionKey, row.RowKey); err != nil {
		return fmt.Errorf("failed to delete row %s: %w", row.Key(), err)
	}
	return nil
}

// RemoveAll deletes every row matching the repository's key filter, one at a
// time, and returns the number deleted. It is not atomic; rows written
// concurrently may be missed.
func (r *Repository[T]) RemoveAll(ctx context.Context) (int, error) {
	rows, err := r.queryAll(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for _, row := range rows {
		if err := r.client.DeleteRow(ctx, row.PartitionKey, row.RowKey); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete row %s: %w", row.Key(), err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (r *Repository[T]) encode(item *T) (*Row, error) {
	row, err := r.mapper.Encode(item)
	if err != nil {
		return nil, err
	}
	if err := row.Key().Validate(); err != nil {
		return nil, &ValidationError{TypeName: r.mapper.TypeName(), InvalidKeys: []Key{row.Key()}}
	}
	return row, nil
}
