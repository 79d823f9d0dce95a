package marketmock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/collabhub/marketstore"
)

type apiCall[T, U any] func(context.Context, *T, ...func(*dynamodb.Options)) (*U, error)

// MockClient is an expectation-based mock of the DynamoDB operations
// marketstore uses. Set the function field for each call a test expects;
// any operation left unset fails the test.
type MockClient struct {
	GetFunc        apiCall[dynamodb.GetItemInput, dynamodb.GetItemOutput]
	PutFunc        apiCall[dynamodb.PutItemInput, dynamodb.PutItemOutput]
	UpdateFunc     apiCall[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput]
	DeleteFunc     apiCall[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput]
	QueryFunc      apiCall[dynamodb.QueryInput, dynamodb.QueryOutput]
	BatchGetFunc   apiCall[dynamodb.BatchGetItemInput, dynamodb.BatchGetItemOutput]
	BatchWriteFunc apiCall[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput]
}

var _ marketstore.DynamoDBClient = (*MockClient)(nil)

// NewMockClient creates a mock whose operations all fail the test until
// an expectation replaces them.
func NewMockClient(t *testing.T) *MockClient {
	return &MockClient{
		GetFunc:        defaultFunc[dynamodb.GetItemInput, dynamodb.GetItemOutput](t),
		PutFunc:        defaultFunc[dynamodb.PutItemInput, dynamodb.PutItemOutput](t),
		UpdateFunc:     defaultFunc[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput](t),
		DeleteFunc:     defaultFunc[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput](t),
		QueryFunc:      defaultFunc[dynamodb.QueryInput, dynamodb.QueryOutput](t),
		BatchGetFunc:   defaultFunc[dynamodb.BatchGetItemInput, dynamodb.BatchGetItemOutput](t),
		BatchWriteFunc: defaultFunc[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput](t),
	}
}

func defaultFunc[T, U any](t *testing.T) apiCall[T, U] {
	return func(ctx context.Context, params *T, optFns ...func(*dynamodb.Options)) (*U, error) {
		t.Helper()
		t.Fatalf("unexpected %T call", params)
		return nil, nil
	}
}

func (m *MockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.GetFunc(ctx, params, optFns...)
}

func (m *MockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.PutFunc(ctx, params, optFns...)
}

func (m *MockClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return m.UpdateFunc(ctx, params, optFns...)
}

func (m *MockClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return m.DeleteFunc(ctx, params, optFns...)
}

func (m *MockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.QueryFunc(ctx, params, optFns...)
}

func (m *MockClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return m.BatchGetFunc(ctx, params, optFns...)
}

func (m *MockClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return m.BatchWriteFunc(ctx, params, optFns...)
}
