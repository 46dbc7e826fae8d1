package ddbtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/nisimpson/tablemap"
)

// Error codes reported in failed action responses.
const (
	CodeEntityAlreadyExists         = "EntityAlreadyExists"
	CodeResourceNotFound            = "ResourceNotFound"
	CodeUpdateConditionNotSatisfied = "UpdateConditionNotSatisfied"
	CodeNotExecuted                 = "NotExecuted"
)

// cancellation reason codes reported by TransactWriteItems
const (
	reasonNone                   = "None"
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
)

// SubmitTransaction implements tablemap.TableClient with a single TransactWriteItems call.
//
// The response of an upsert reports StatusCreated when the row did not exist
// before the transaction. Existence is checked with BatchGetItem just before the
// write, so a concurrent writer can make the reported status stale.
func (t *Table) SubmitTransaction(ctx context.Context, actions []tablemap.TransactionAction) ([]tablemap.Response, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	if len(actions) > tablemap.MaxBatchSize {
		return nil, fmt.Errorf("transaction has %d actions, maximum is %d", len(actions), tablemap.MaxBatchSize)
	}

	t.logger.Debug("submit transaction", zap.Int("actions", len(actions)))

	existing, err := t.existingKeys(ctx, actions)
	if err != nil {
		return nil, err
	}

	items := make([]types.TransactWriteItem, len(actions))
	for i, action := range actions {
		item, err := t.transactItem(action)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		items[i] = item
	}

	_, err = t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		return cancellationResponses(actions, canceled.CancellationReasons), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transact write items: %w", err)
	}

	responses := make([]tablemap.Response, len(actions))
	for i, action := range actions {
		status := tablemap.StatusNoContent
		switch action.Type {
		case tablemap.ActionAdd:
			status = tablemap.StatusCreated
		case tablemap.ActionUpsertReplace:
			if !existing[action.Row.Key()] {
				status = tablemap.StatusCreated
			}
		}
		responses[i] = tablemap.Response{Status: status}
	}
	return responses, nil
}

func (t *Table) transactItem(action tablemap.TransactionAction) (types.TransactWriteItem, error) {
	if action.Row == nil {
		return types.TransactWriteItem{}, fmt.Errorf("%s action has no row", action.Type)
	}

	if action.Type == tablemap.ActionDelete {
		return types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(t.name),
				Key:       keyOf(action.Row.PartitionKey, action.Row.RowKey),
			},
		}, nil
	}

	item, err := t.stamp(action.Row)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	put := &types.Put{
		TableName: aws.String(t.name),
		Item:      item,
	}

	var cond expression.ConditionBuilder
	switch action.Type {
	case tablemap.ActionAdd:
		cond = expression.AttributeNotExists(expression.Name(tablemap.PropertyPartitionKey))
	case tablemap.ActionUpdateReplace:
		cond = updateCondition(action.ETag)
	case tablemap.ActionUpsertReplace:
		return types.TransactWriteItem{Put: put}, nil
	default:
		return types.TransactWriteItem{}, fmt.Errorf("unsupported action type %s", action.Type)
	}

	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build expression: %w", err)
	}
	put.ConditionExpression = expr.Condition()
	put.ExpressionAttributeNames = expr.Names()
	put.ExpressionAttributeValues = expr.Values()
	put.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	return types.TransactWriteItem{Put: put}, nil
}

// existingKeys returns the keys of the upserted rows that already exist.
func (t *Table) existingKeys(ctx context.Context, actions []tablemap.TransactionAction) (map[tablemap.Key]bool, error) {
	seen := make(map[tablemap.Key]bool)
	var keys []Item
	for _, action := range actions {
		if action.Type != tablemap.ActionUpsertReplace || action.Row == nil {
			continue
		}
		key := action.Row.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, keyOf(key.Partition, key.Row))
	}

	existing := make(map[tablemap.Key]bool, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	expr, err := expression.NewBuilder().WithProjection(expression.NamesList(
		expression.Name(tablemap.PropertyPartitionKey),
		expression.Name(tablemap.PropertyRowKey),
	)).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	request := map[string]types.KeysAndAttributes{
		t.name: {
			Keys:                     keys,
			ProjectionExpression:     expr.Projection(),
			ExpressionAttributeNames: expr.Names(),
			ConsistentRead:           aws.Bool(true),
		},
	}
	for len(request) > 0 {
		out, err := t.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return nil, fmt.Errorf("failed to batch get items: %w", err)
		}
		for _, item := range out.Responses[t.name] {
			row, err := UnmarshalRow(item)
			if err != nil {
				return nil, err
			}
			existing[row.Key()] = true
		}
		request = out.UnprocessedKeys
	}
	return existing, nil
}

// cancellationResponses maps the reasons of a canceled transaction to per-action responses.
func cancellationResponses(actions []tablemap.TransactionAction, reasons []types.CancellationReason) []tablemap.Response {
	responses := make([]tablemap.Response, len(actions))
	for i, action := range actions {
		if i >= len(reasons) {
			responses[i] = notExecuted()
			continue
		}

		reason := reasons[i]
		code := aws.ToString(reason.Code)
		switch code {
		case reasonNone, "":
			responses[i] = notExecuted()
		case reasonConditionalCheckFailed:
			responses[i] = conditionFailed(action, reason.Item)
		default:
			responses[i] = tablemap.Response{
				Status:       http.StatusBadRequest,
				ReasonPhrase: aws.ToString(reason.Message),
				ErrorCode:    code,
			}
		}
	}
	return responses
}

func notExecuted() tablemap.Response {
	return tablemap.Response{
		Status:       tablemap.StatusNotExecuted,
		ReasonPhrase: "action not executed because another action of the transaction failed",
		ErrorCode:    CodeNotExecuted,
	}
}

func conditionFailed(action tablemap.TransactionAction, old Item) tablemap.Response {
	switch {
	case action.Type == tablemap.ActionAdd:
		return tablemap.Response{
			Status:       http.StatusConflict,
			ReasonPhrase: "The specified entity already exists.",
			ErrorCode:    CodeEntityAlreadyExists,
		}
	case old == nil:
		return tablemap.Response{
			Status:       http.StatusNotFound,
			ReasonPhrase: "The specified resource does not exist.",
			ErrorCode:    CodeResourceNotFound,
		}
	default:
		return tablemap.Response{
			Status:       http.StatusPreconditionFailed,
			ReasonPhrase: "The update condition specified in the request was not satisfied.",
			ErrorCode:    CodeUpdateConditionNotSatisfied,
		}
	}
}
