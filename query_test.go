package marketstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"github.com/collabhub/marketstore"
	"github.com/collabhub/marketstore/marketmock"
)

func seedRoles(t *testing.T, store *marketstore.Store, startupID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		createdAt := testTime.Add(time.Duration(i) * time.Minute)
		marketmock.Seed(t, store, marketmock.RoleItem(startupID, fmt.Sprintf("r%03d", i), createdAt))
	}
}

func TestPartitionQueryPrefix(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	seedRoles(t, store, "s1", 3)
	// The startup's own metadata shares the partition but not the prefix.
	marketmock.Seed(t, store, marketmock.StartupItem("s1", "u1"))

	result, err := store.Query(ctx, marketstore.PartitionQuery{
		Partition:  "STARTUP#s1",
		SortPrefix: marketstore.SortPrefixRole,
	})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("Expected 3 roles, got %d", len(result.Items))
	}
	for i, item := range result.Items {
		want := fmt.Sprintf("ROLE#r%03d", i)
		if item.Key.Sort != want {
			t.Errorf("Expected sort key %s at %d, got %s", want, i, item.Key.Sort)
		}
	}
	if result.NextCursor != "" {
		t.Errorf("Expected exhausted listing, got cursor %s", result.NextCursor)
	}
}

func TestPartitionQueryDescending(t *testing.T) {
	store, _ := testStore(t)
	seedRoles(t, store, "s1", 3)

	result, err := store.Query(context.Background(), marketstore.PartitionQuery{
		Partition:  "STARTUP#s1",
		SortPrefix: marketstore.SortPrefixRole,
		Descending: true,
	})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if result.Items[0].Key.Sort != "ROLE#r002" {
		t.Errorf("Expected newest role first, got %s", result.Items[0].Key.Sort)
	}
}

func TestPaginationWalksWholePartition(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	seedRoles(t, store, "s1", 7)

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		result, err := store.Query(ctx, marketstore.PartitionQuery{
			Partition:  "STARTUP#s1",
			SortPrefix: marketstore.SortPrefixRole,
			Limit:      3,
			Cursor:     cursor,
		})
		if err != nil {
			t.Fatalf("Failed to query page %d: %v", pages, err)
		}
		pages++
		for _, item := range result.Items {
			if seen[item.Key.Sort] {
				t.Errorf("Duplicate item %s across pages", item.Key.Sort)
			}
			seen[item.Key.Sort] = true
		}
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	if len(seen) != 7 {
		t.Errorf("Expected 7 distinct items across pages, got %d", len(seen))
	}
	if pages != 3 {
		t.Errorf("Expected 3 pages of limit 3, got %d", pages)
	}
}

func TestIndexQuerySparseExclusion(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	marketmock.Seed(t, store,
		marketmock.RoleItem("s1", "open-1", testTime),
		marketmock.RoleItem("s1", "open-2", testTime.Add(time.Minute)),
	)
	// A closed role carries no feed key and must not appear.
	closed := marketmock.RoleItem("s2", "closed-1", testTime, marketmock.WithAttribute("isOpen", false))
	closed.Index1 = nil
	marketmock.Seed(t, store, closed)

	result, err := store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:      marketstore.IndexGeneric1,
		Partition:  marketstore.OpenRolesPartition(),
		Descending: true,
	})
	if err != nil {
		t.Fatalf("Failed to query index: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("Expected 2 open roles, got %d", len(result.Items))
	}
	if result.Items[0].Key.Sort != "ROLE#open-2" {
		t.Errorf("Expected newest open role first, got %s", result.Items[0].Key.Sort)
	}
}

func TestIndexQueryPagination(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		marketmock.Seed(t, store, marketmock.ApplicationItem(
			fmt.Sprintf("a%d", i), "u1", "s1", "r1", testTime.Add(time.Duration(i)*time.Second)))
	}

	first, err := store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric1,
		Partition: marketstore.ApplicantPartition("u1"),
		Limit:     3,
	})
	if err != nil {
		t.Fatalf("Failed to query first page: %v", err)
	}
	if len(first.Items) != 3 || first.NextCursor == "" {
		t.Fatalf("Expected full first page with cursor, got %d items", len(first.Items))
	}

	second, err := store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric1,
		Partition: marketstore.ApplicantPartition("u1"),
		Limit:     3,
		Cursor:    first.NextCursor,
	})
	if err != nil {
		t.Fatalf("Failed to query second page: %v", err)
	}
	if len(second.Items) != 2 {
		t.Errorf("Expected 2 remaining items, got %d", len(second.Items))
	}
}

func TestQueryFilterShortensPages(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		item := marketmock.NotificationItem("u1", fmt.Sprintf("n%d", i))
		if i%2 == 0 {
			item = marketmock.NotificationItem("u1", fmt.Sprintf("n%d", i), marketmock.WithAttribute("isRead", true))
		}
		marketmock.Seed(t, store, item)
	}

	result, err := store.Query(ctx, marketstore.PartitionQuery{
		Partition:  "USER#u1",
		SortPrefix: marketstore.SortPrefixNotification,
		Filter:     expression.Name("isRead").Equal(expression.Value(false)),
	})
	if err != nil {
		t.Fatalf("Failed to query with filter: %v", err)
	}
	if len(result.Items) != 2 {
		t.Errorf("Expected 2 unread notifications, got %d", len(result.Items))
	}
}

func TestQueryInvalidCursor(t *testing.T) {
	store, _ := testStore(t)
	_, err := store.Query(context.Background(), marketstore.PartitionQuery{
		Partition: "USER#u1",
		Cursor:    "not-a-cursor",
	})
	if !errors.Is(err, marketstore.ErrInvalidCursor) {
		t.Errorf("Expected ErrInvalidCursor, got %v", err)
	}
}

func TestEmailIndexLookup(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	marketmock.Seed(t, store,
		marketmock.UserItem("u1", "alice@example.com"),
		marketmock.UserItem("u2", "bob@example.com"),
	)

	result, err := store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexByEmail,
		Partition: "bob@example.com",
	})
	if err != nil {
		t.Fatalf("Failed to query email index: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("Expected exactly one match, got %d", len(result.Items))
	}
	if result.Items[0].Key.Partition != "USER#u2" {
		t.Errorf("Expected USER#u2, got %s", result.Items[0].Key.Partition)
	}
}
