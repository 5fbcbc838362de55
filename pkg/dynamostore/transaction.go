package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theory-cloud/listtheory/pkg/core"
	liberrors "github.com/theory-cloud/listtheory/pkg/errors"
	"github.com/theory-cloud/listtheory/pkg/operation"
)

// Attribute layout of the collection table.
const (
	attrList     = "list_name"
	attrItemID   = "item_id"
	attrVersion  = "_version"
	attrCreated  = "_created"
	attrModified = "_modified"
	attrPath     = "_path"

	// The counter row of each collection lives at item_id 0 and allocates
	// new item IDs; real items start at 1.
	counterItemID = 0
	attrLastID    = "last_item_id"
)

// txEntry pairs a deferred sub-request with the result slot the engine
// reads back after Commit.
type txEntry struct {
	handle *core.ResultHandle
	run    func(ctx context.Context) (any, error)
}

// Transaction implements core.BatchTransaction. Registration builds and
// defers sub-requests; Commit fires them in registration order.
type Transaction struct {
	id      string
	api     dynamoAPI
	table   string
	log     *zap.Logger
	entries []txEntry
}

func newTransaction(api dynamoAPI, table string, log *zap.Logger) *Transaction {
	return &Transaction{
		id:    uuid.NewString(),
		api:   api,
		table: table,
		log:   log,
	}
}

// AddItem registers an item create. The item ID is allocated from the
// collection's counter row at commit time.
func (t *Transaction) AddItem(collection string, fields map[string]any) (*core.ResultHandle, error) {
	item, err := marshalFields(fields)
	if err != nil {
		return nil, err
	}
	return t.deferAdd(collection, item, ""), nil
}

// AddValidated registers a validate-and-create: form values are coerced in
// order, then persisted under the given folder path.
func (t *Transaction) AddValidated(collection string, formValues []operation.FormValue, path string) (*core.ResultHandle, error) {
	item, err := marshalFields(coerceFormValues(formValues))
	if err != nil {
		return nil, err
	}
	return t.deferAdd(collection, item, path), nil
}

// UpdateItem registers a field-map update, conditional on the concurrency
// token when one is supplied.
func (t *Transaction) UpdateItem(collection string, itemID int, fields map[string]any, concurrencyToken string) (*core.ResultHandle, error) {
	item, err := marshalFields(fields)
	if err != nil {
		return nil, err
	}

	version, hasToken, err := parseToken(concurrencyToken)
	if err != nil {
		return nil, err
	}

	return t.deferUpdate(collection, itemID, item, version, hasToken), nil
}

// UpdateValidated registers a validate-and-update. The service's
// validation path is always unconditional; there is no token variant.
func (t *Transaction) UpdateValidated(collection string, itemID int, formValues []operation.FormValue) (*core.ResultHandle, error) {
	item, err := marshalFields(coerceFormValues(formValues))
	if err != nil {
		return nil, err
	}
	return t.deferUpdate(collection, itemID, item, 0, false), nil
}

// DeleteItem registers an item delete, conditional on the concurrency
// token when one is supplied.
func (t *Transaction) DeleteItem(collection string, itemID int, concurrencyToken string) (*core.ResultHandle, error) {
	version, hasToken, err := parseToken(concurrencyToken)
	if err != nil {
		return nil, err
	}

	handle := &core.ResultHandle{}
	t.entries = append(t.entries, txEntry{
		handle: handle,
		run: func(ctx context.Context) (any, error) {
			return t.runDelete(ctx, collection, itemID, version, hasToken)
		},
	})
	return handle, nil
}

// Commit fires the deferred sub-requests as one grouped round trip.
// Individual outcomes land on the result handles; Commit itself fails only
// when the transaction cannot run at all.
func (t *Transaction) Commit(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(t.entries) == 0 {
		return nil
	}
	if t.api == nil {
		return liberrors.ErrNilClient
	}

	t.log.Debug("committing grouped transaction",
		zap.String("transaction_id", t.id),
		zap.Int("requests", len(t.entries)))

	for _, entry := range t.entries {
		data, err := entry.run(ctx)
		if err != nil {
			entry.handle.Fail(err)
			continue
		}
		entry.handle.Resolve(data)
	}

	t.entries = nil
	return nil
}

func (t *Transaction) deferAdd(collection string, item map[string]types.AttributeValue, path string) *core.ResultHandle {
	handle := &core.ResultHandle{}
	t.entries = append(t.entries, txEntry{
		handle: handle,
		run: func(ctx context.Context) (any, error) {
			return t.runAdd(ctx, collection, item, path)
		},
	})
	return handle
}

func (t *Transaction) deferUpdate(collection string, itemID int, item map[string]types.AttributeValue, version int64, hasToken bool) *core.ResultHandle {
	handle := &core.ResultHandle{}
	t.entries = append(t.entries, txEntry{
		handle: handle,
		run: func(ctx context.Context) (any, error) {
			return t.runUpdate(ctx, collection, itemID, item, version, hasToken)
		},
	})
	return handle
}

func (t *Transaction) runAdd(ctx context.Context, collection string, item map[string]types.AttributeValue, path string) (any, error) {
	itemID, err := t.allocateItemID(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate item id: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	full := make(map[string]types.AttributeValue, len(item)+6)
	for k, v := range item {
		full[k] = v
	}
	full[attrList] = &types.AttributeValueMemberS{Value: collection}
	full[attrItemID] = &types.AttributeValueMemberN{Value: strconv.Itoa(itemID)}
	full[attrVersion] = &types.AttributeValueMemberN{Value: "1"}
	full[attrCreated] = &types.AttributeValueMemberS{Value: now}
	full[attrModified] = &types.AttributeValueMemberS{Value: now}
	if path != "" {
		full[attrPath] = &types.AttributeValueMemberS{Value: path}
	}

	_, err = t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.table),
		Item:                full,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": attrItemID,
		},
	})
	if err != nil {
		return nil, translateError(err, false)
	}

	return map[string]any{
		"ID":   itemID,
		"ETag": operation.ETag(1),
	}, nil
}

func (t *Transaction) runUpdate(ctx context.Context, collection string, itemID int, item map[string]types.AttributeValue, version int64, hasToken bool) (any, error) {
	names := map[string]string{
		"#id":  attrItemID,
		"#ver": attrVersion,
		"#mod": attrModified,
	}
	values := map[string]types.AttributeValue{
		":one": &types.AttributeValueMemberN{Value: "1"},
		":mod": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}

	updateExpr := "SET #ver = #ver + :one, #mod = :mod"
	i := 0
	for name, av := range item {
		attrName := fmt.Sprintf("#f%d", i)
		attrValue := fmt.Sprintf(":v%d", i)
		names[attrName] = name
		values[attrValue] = av
		updateExpr += fmt.Sprintf(", %s = %s", attrName, attrValue)
		i++
	}

	conditionExpr := "attribute_exists(#id)"
	if hasToken {
		conditionExpr += " AND #ver = :cur"
		values[":cur"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)}
	}

	out, err := t.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.table),
		Key:                       itemKey(collection, itemID),
		UpdateExpression:          aws.String(updateExpr),
		ConditionExpression:       aws.String(conditionExpr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return nil, translateError(err, hasToken)
	}

	return map[string]any{
		"ID":   itemID,
		"ETag": newETagFromOutput(out.Attributes),
	}, nil
}

func (t *Transaction) runDelete(ctx context.Context, collection string, itemID int, version int64, hasToken bool) (any, error) {
	names := map[string]string{"#id": attrItemID}
	var values map[string]types.AttributeValue

	conditionExpr := "attribute_exists(#id)"
	if hasToken {
		conditionExpr += " AND #ver = :cur"
		names["#ver"] = attrVersion
		values = map[string]types.AttributeValue{
			":cur": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		}
	}

	_, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(t.table),
		Key:                       itemKey(collection, itemID),
		ConditionExpression:       aws.String(conditionExpr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return nil, translateError(err, hasToken)
	}

	return map[string]any{"ID": itemID}, nil
}

// allocateItemID reserves the next item ID from the collection's counter
// row with an atomic ADD.
func (t *Transaction) allocateItemID(ctx context.Context, collection string) (int, error) {
	out, err := t.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.table),
		Key:              itemKey(collection, counterItemID),
		UpdateExpression: aws.String("ADD #last :one"),
		ExpressionAttributeNames: map[string]string{
			"#last": attrLastID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}

	last, ok := out.Attributes[attrLastID].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("counter row for %s returned no %s attribute", collection, attrLastID)
	}

	id, err := strconv.Atoi(last.Value)
	if err != nil {
		return 0, fmt.Errorf("counter row for %s holds invalid id %q", collection, last.Value)
	}
	return id, nil
}

func itemKey(collection string, itemID int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrList:   &types.AttributeValueMemberS{Value: collection},
		attrItemID: &types.AttributeValueMemberN{Value: strconv.Itoa(itemID)},
	}
}

func parseToken(token string) (version int64, hasToken bool, err error) {
	if token == "" {
		return 0, false, nil
	}
	version, err = operation.ParseETag(token)
	if err != nil {
		return 0, false, err
	}
	return version, true, nil
}

func newETagFromOutput(attrs map[string]types.AttributeValue) string {
	if ver, ok := attrs[attrVersion].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(ver.Value, 10, 64); err == nil {
			return operation.ETag(n)
		}
	}
	return ""
}

// translateError converts DynamoDB errors to domain errors. A failed
// condition means a stale token when one was supplied, and a missing item
// otherwise.
func translateError(err error, hadToken bool) error {
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		if hadToken {
			return fmt.Errorf("%w: %s", liberrors.ErrConditionFailed, conditionFailed.ErrorMessage())
		}
		return liberrors.ErrItemNotFound
	}
	return err
}
