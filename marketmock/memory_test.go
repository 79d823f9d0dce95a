package marketmock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/collabhub/marketstore"
	"github.com/collabhub/marketstore/marketmock"
)

var memTestTime = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func memStore(t *testing.T) (*marketstore.Store, *marketmock.Memory) {
	t.Helper()
	mem := marketmock.NewMemory("mem-test")
	store, err := marketstore.New(mem, marketstore.Config{
		TableName: "mem-test",
		Clock:     func() time.Time { return memTestTime },
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, mem
}

func TestMemoryRejectsUnknownTable(t *testing.T) {
	mem := marketmock.NewMemory("mem-test")
	_, err := mem.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String("other-table"),
		Key:       marketstore.AttributeMap{},
	})
	if err == nil {
		t.Error("Expected error for unknown table")
	}
}

func TestMemoryCreateOnUpdate(t *testing.T) {
	store, mem := memStore(t)
	// An unconditional update against a vacant key creates the item.
	err := store.Update(context.Background(), marketstore.UserKey("u1"), marketstore.Patch{
		"bio": "from update",
	})
	if err != nil {
		t.Fatalf("Failed to update vacant key: %v", err)
	}
	raw := mem.Raw("USER#u1", "PROFILE")
	if raw == nil {
		t.Fatal("Expected item created by update")
	}
	if _, ok := raw["bio"]; !ok {
		t.Error("Expected bio attribute set")
	}
}

func TestMemoryRejectsUnknownGrammar(t *testing.T) {
	mem := marketmock.NewMemory("mem-test")
	_, err := mem.UpdateItem(context.Background(), &dynamodb.UpdateItemInput{
		TableName: aws.String("mem-test"),
		Key: marketstore.AttributeMap{
			marketstore.AttributeNamePartition: &types.AttributeValueMemberS{Value: "USER#u1"},
			marketstore.AttributeNameSort:      &types.AttributeValueMemberS{Value: "PROFILE"},
		},
		UpdateExpression: aws.String("SET a = list_append(a, :v)"),
	})
	if err == nil {
		t.Error("Expected unsupported expression to be rejected")
	}
}

func TestMemoryLimitRunsBeforeFilter(t *testing.T) {
	store, mem := memStore(t)
	ctx := context.Background()
	for _, n := range []struct {
		id   string
		read bool
	}{{"n1", true}, {"n2", true}, {"n3", false}} {
		item := marketmock.NotificationItem("u1", n.id, marketmock.WithAttribute("isRead", n.read))
		marketmock.Seed(t, store, item)
	}

	out, err := mem.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String("mem-test"),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": marketstore.AttributeNamePartition,
			"#f":  "isRead",
		},
		ExpressionAttributeValues: marketstore.AttributeMap{
			":pk": &types.AttributeValueMemberS{Value: "USER#u1"},
			":f":  &types.AttributeValueMemberBOOL{Value: false},
		},
		FilterExpression: aws.String("#f = :f"),
		Limit:            aws.Int32(2),
	})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	// The first two items by key are both read, so the filtered page is
	// empty while the resume key still advances.
	if len(out.Items) != 0 {
		t.Errorf("Expected empty filtered page, got %d items", len(out.Items))
	}
	if out.LastEvaluatedKey == nil {
		t.Error("Expected resume key on truncated page")
	}
}

func TestMemoryFailInjectionByCall(t *testing.T) {
	store, mem := memStore(t)
	ctx := context.Background()
	cause := errors.New("injected")
	mem.FailOnCall("PutItem", 2, cause)

	if err := store.Put(ctx, marketmock.UserItem("u1", "u1@example.com")); err != nil {
		t.Fatalf("Expected first put to pass, got %v", err)
	}
	err := store.Put(ctx, marketmock.UserItem("u2", "u2@example.com"))
	if !errors.Is(err, cause) {
		t.Errorf("Expected injected failure on second put, got %v", err)
	}
	if err := store.Put(ctx, marketmock.UserItem("u3", "u3@example.com")); err != nil {
		t.Fatalf("Expected third put to pass, got %v", err)
	}
	if calls := mem.Calls("PutItem"); calls != 3 {
		t.Errorf("Expected 3 recorded calls, got %d", calls)
	}
}
