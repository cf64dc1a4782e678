package dynamodb

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-memory Client for hermetic store tests. It keeps items
// per table in insertion order, honors the condition expressions the stores
// emit, and can page scan results to exercise pagination handling.
type fakeClient struct {
	mu       sync.Mutex
	tables   map[string]*fakeTable
	pageSize int

	scanCalls        int
	createTableCalls int
}

type fakeTable struct {
	keyAttr string
	items   map[string]map[string]types.AttributeValue
	order   []string
}

// newFakeClient creates a client with the given tables, mapping table name to
// partition-key attribute name.
func newFakeClient(tables map[string]string) *fakeClient {
	c := &fakeClient{tables: make(map[string]*fakeTable)}
	for name, keyAttr := range tables {
		c.tables[name] = &fakeTable{
			keyAttr: keyAttr,
			items:   make(map[string]map[string]types.AttributeValue),
		}
	}
	return c
}

func (c *fakeClient) table(name *string) (*fakeTable, error) {
	t, ok := c.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	return t, nil
}

func keyValue(key map[string]types.AttributeValue) string {
	for _, av := range key {
		if s, ok := av.(*types.AttributeValueMemberS); ok {
			return s.Value
		}
	}
	return ""
}

func (c *fakeClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.table(params.TableName)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[keyValue(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (c *fakeClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, _ := stringAttr(params.Item, t.keyAttr)
	_, exists := t.items[key]
	if err := checkCondition(params.ConditionExpression, exists); err != nil {
		return nil, err
	}
	if !exists {
		t.order = append(t.order, key)
	}
	t.items[key] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (c *fakeClient) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key := keyValue(params.Key)
	_, exists := t.items[key]
	if err := checkCondition(params.ConditionExpression, exists); err != nil {
		return nil, err
	}
	delete(t.items, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// checkCondition enforces the only two condition shapes the stores use.
func checkCondition(expr *string, exists bool) error {
	if expr == nil {
		return nil
	}
	switch {
	case strings.Contains(*expr, "attribute_not_exists") && exists:
		return &types.ConditionalCheckFailedException{Message: aws.String("the conditional request failed")}
	case strings.Contains(*expr, "attribute_exists") && !strings.Contains(*expr, "attribute_not_exists") && !exists:
		return &types.ConditionalCheckFailedException{Message: aws.String("the conditional request failed")}
	}
	return nil
}

func (c *fakeClient) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanCalls++

	t, err := c.table(params.TableName)
	if err != nil {
		return nil, err
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		after := keyValue(params.ExclusiveStartKey)
		for i, k := range t.order {
			if k == after {
				start = i + 1
				break
			}
		}
	}
	end := len(t.order)
	if c.pageSize > 0 && start+c.pageSize < end {
		end = start + c.pageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, k := range t.order[start:end] {
		item := t.items[k]
		if matchesFilter(item, params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			out.Items = append(out.Items, copyItem(item))
		}
	}
	if end < len(t.order) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			t.keyAttr: &types.AttributeValueMemberS{Value: t.order[end-1]},
		}
	}
	return out, nil
}

// matchesFilter evaluates the conjunction-of-equalities filters the stores
// build: clauses of the form "#n = :n", possibly parenthesized, joined by AND.
func matchesFilter(item map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) bool {
	if expr == nil {
		return true
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		parts := strings.Split(strings.Trim(clause, "() "), " = ")
		if len(parts) != 2 {
			return false
		}
		want, ok := values[parts[1]].(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		got, ok := item[names[parts[0]]].(*types.AttributeValueMemberS)
		if !ok || got.Value != want.Value {
			return false
		}
	}
	return true
}

func (c *fakeClient) DescribeTable(_ context.Context, params *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.table(params.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

func (c *fakeClient) CreateTable(_ context.Context, params *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createTableCalls++

	name := aws.ToString(params.TableName)
	if _, ok := c.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	keyAttr := ""
	if len(params.KeySchema) > 0 {
		keyAttr = aws.ToString(params.KeySchema[0].AttributeName)
	}
	c.tables[name] = &fakeTable{
		keyAttr: keyAttr,
		items:   make(map[string]map[string]types.AttributeValue),
	}
	return &dynamodb.CreateTableOutput{}, nil
}
