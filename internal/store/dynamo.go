package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-chat-orderflow/internal/aws"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

// maxAppendRetries bounds how often Append re-reads the table after losing an
// id race to a writer in another process.
const maxAppendRetries = 3

// DynamoStore keeps order records in a DynamoDB table whose partition key is
// the numeric attribute "id".
type DynamoStore struct {
	mu        sync.Mutex // serializes Append within this process
	client    aws.DynamoDBAPI
	tableName string
}

// NewDynamoStore creates a DynamoStore bound to tableName.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// LoadAll scans the whole table and returns the records ordered by id.
func (s *DynamoStore) LoadAll(ctx context.Context) ([]orders.OrderRecord, error) {
	var (
		out      []orders.OrderRecord
		startKey map[string]types.AttributeValue
	)
	for {
		resp, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.tableName, err)
		}
		var page []orders.OrderRecord
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, page...)
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	sortByID(out)
	return out, nil
}

// LoadByID fetches a record by id. Returns (nil, nil) if not found.
func (s *DynamoStore) LoadByID(ctx context.Context, id int64) (*orders.OrderRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            idKey(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec orders.OrderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &rec, nil
}

// Upsert writes rec, replacing any existing item with the same id.
func (s *DynamoStore) Upsert(ctx context.Context, rec orders.OrderRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Append assigns max(max(id)+1, floor) to rec and writes it with attribute_not_exists(id),
// so a writer in another process that picked the same id makes us retry
// instead of overwriting its record.
func (s *DynamoStore) Append(ctx context.Context, rec orders.OrderRecord, floor int64) (orders.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		all, err := s.LoadAll(ctx)
		if err != nil {
			return orders.OrderRecord{}, err
		}
		rec.ID = nextID(all, floor)

		item, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return orders.OrderRecord{}, fmt.Errorf("marshal order: %w", err)
		}
		_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(id)"),
		})
		if err == nil {
			return rec, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			lastErr = fmt.Errorf("append id %d: %w", rec.ID, ErrIDConflict)
			continue
		}
		return orders.OrderRecord{}, fmt.Errorf("put item: %w", err)
	}
	return orders.OrderRecord{}, lastErr
}

// Clear deletes every item in the table.
func (s *DynamoStore) Clear(ctx context.Context) error {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, rec := range all {
		if _, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
			TableName: &s.tableName,
			Key:       idKey(rec.ID),
		}); err != nil {
			return fmt.Errorf("delete item %d: %w", rec.ID, err)
		}
	}
	return nil
}

func idKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
