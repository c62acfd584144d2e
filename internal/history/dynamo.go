package history

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-chat-orderflow/internal/aws"
)

// DynamoStore keeps chat history in a DynamoDB table keyed by message id.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoStore returns a history store bound to tableName.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, nowFunc: time.Now}
}

// Add implements Store.
func (s *DynamoStore) Add(ctx context.Context, userID, role, content string) (Message, error) {
	if err := checkRole(role); err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: s.nowFunc().UTC(),
	}
	item, err := attributevalue.MarshalMap(msg)
	if err != nil {
		return Message{}, fmt.Errorf("marshal message: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return Message{}, fmt.Errorf("put message: %w", err)
	}
	return msg, nil
}

// List implements Store.
func (s *DynamoStore) List(ctx context.Context, userID string) ([]Message, error) {
	var (
		all  []Message
		last map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: last,
			ConsistentRead:    awsBool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		var page []Message
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		last = out.LastEvaluatedKey
	}
	return filterAndSort(all, userID), nil
}

func awsBool(b bool) *bool { return &b }
