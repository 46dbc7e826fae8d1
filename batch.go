package tablemap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxBatchSize is the maximum number of actions the table service accepts in one transaction.
	MaxBatchSize = 100
)

// BatchOptions configures SubmitTransactionsBatched.
type BatchOptions struct {
	Size    int         // Actions per transaction group. Default is MaxBatchSize.
	Logger  *zap.Logger // Default is a no-op logger
	Metrics *Metrics
}

func newBatchOptions(opts []func(*BatchOptions)) BatchOptions {
	options := BatchOptions{Size: MaxBatchSize}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Size <= 0 || options.Size > MaxBatchSize {
		options.Size = MaxBatchSize
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}

// SubmitTransactionsBatched submits actions in consecutive groups of at most
// MaxBatchSize, in order, and returns the concatenated responses.
//
// Groups are independent transactions. When a group reports failed actions the
// function stops and returns a *BatchError; groups submitted before it remain
// committed and their responses are returned alongside the error.
func SubmitTransactionsBatched(ctx context.Context, client TableClient, actions []TransactionAction, opts ...func(*BatchOptions)) ([]Response, error) {
	options := newBatchOptions(opts)
	responses := make([]Response, 0, len(actions))

	for i := 0; i < len(actions); i += options.Size {
		end := i + options.Size
		if end > len(actions) {
			end = len(actions)
		}
		group := actions[i:end]

		options.Logger.Debug("submitting transaction group",
			zap.Int("offset", i),
			zap.Int("size", len(group)))

		start := time.Now()
		result, err := client.SubmitTransaction(ctx, group)
		if err != nil {
			options.Metrics.observeGroup(false, time.Since(start))
			return responses, fmt.Errorf("failed to submit transaction group at offset %d: %w", i, err)
		}
		if len(result) != len(group) {
			options.Metrics.observeGroup(false, time.Since(start))
			return responses, fmt.Errorf("transaction group at offset %d: expected %d responses, got %d", i, len(group), len(result))
		}

		failures := groupFailures(i, group, result)
		options.Metrics.observeGroup(len(failures) == 0, time.Since(start))
		if len(failures) > 0 {
			options.Logger.Warn("transaction group failed",
				zap.Int("offset", i),
				zap.Int("failed", len(failures)))
			return responses, &BatchError{Failures: failures}
		}

		responses = append(responses, result...)
	}

	return responses, nil
}

// groupFailures lists the failed actions of a group. Actions that were only
// skipped are reported when no action failed on its own.
func groupFailures(offset int, group []TransactionAction, result []Response) []ActionFailure {
	var failures, skipped []ActionFailure
	for j, resp := range result {
		if !resp.IsError() {
			continue
		}
		f := ActionFailure{Index: offset + j, Key: actionKey(group[j]), Response: resp}
		if resp.Status == StatusNotExecuted {
			skipped = append(skipped, f)
		} else {
			failures = append(failures, f)
		}
	}
	if len(failures) == 0 {
		return skipped
	}
	return failures
}

func actionKey(a TransactionAction) Key {
	if a.Row == nil {
		return Key{}
	}
	return a.Row.Key()
}

// IterateRows pages through the rows matching filter. For each page, it builds one
// action per row with createAction, groups the actions by partition in the order
// partitions first appear and calls execute once per group. Iteration stops at the
// first error.
func IterateRows(
	ctx context.Context,
	client TableClient,
	filter TableFilter,
	pageSize int,
	createAction func(*Row) TransactionAction,
	execute func(ctx context.Context, partition string, actions []TransactionAction) error,
) error {
	expr, _ := filter.Render()
	token := ""

	for {
		page, err := client.QueryRows(ctx, expr, pageSize, token)
		if err != nil {
			return fmt.Errorf("failed to query rows: %w", err)
		}

		var order []string
		groups := make(map[string][]TransactionAction)
		for _, row := range page.Rows {
			if _, ok := groups[row.PartitionKey]; !ok {
				order = append(order, row.PartitionKey)
			}
			groups[row.PartitionKey] = append(groups[row.PartitionKey], createAction(row))
		}

		for _, partition := range order {
			if err := execute(ctx, partition, groups[partition]); err != nil {
				return err
			}
		}

		if page.ContinuationToken == "" {
			return nil
		}
		token = page.ContinuationToken
	}
}
