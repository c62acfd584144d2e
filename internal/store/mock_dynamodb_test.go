package store

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a single-table in-memory stand-in keyed by the numeric "id"
// attribute. Scan pages through items pageSize at a time so pagination is
// exercised.
type mockDynamo struct {
	mu       sync.Mutex
	items    map[int64]map[string]types.AttributeValue
	pageSize int

	// stealNextAppend simulates a writer in another process: the next
	// conditional put finds its id already taken.
	stealNextAppend bool
	putCalls        int
	scanErr         error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		items:    map[int64]map[string]types.AttributeValue{},
		pageSize: 2,
	}
}

func keyOf(m map[string]types.AttributeValue) (int64, error) {
	v, ok := m["id"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("no numeric id attribute")
	}
	return strconv.ParseInt(v.Value, 10, 64)
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	id, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(id)" {
		if m.stealNextAppend {
			m.stealNextAppend = false
			m.items[id] = map[string]types.AttributeValue{
				"id":     params.Item["id"],
				"status": &types.AttributeValueMemberS{Value: "DRAFT"},
			}
			return nil, &types.ConditionalCheckFailedException{}
		}
		if _, exists := m.items[id]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[id] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.items[id]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("UpdateItem not supported by store mock")
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	delete(m.items, id)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	ids := make([]int64, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := 0
	if params.ExclusiveStartKey != nil {
		after, err := keyOf(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		for start < len(ids) && ids[start] <= after {
			start++
		}
	}
	end := start + m.pageSize
	if end > len(ids) {
		end = len(ids)
	}
	out := &dyn.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, m.items[id])
	}
	if end < len(ids) {
		out.LastEvaluatedKey = idKey(ids[end-1])
	}
	return out, nil
}
