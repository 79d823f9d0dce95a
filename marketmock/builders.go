package marketmock

import (
	"context"
	"testing"
	"time"

	"github.com/collabhub/marketstore"
)

// ItemOption adjusts a seeded item before it is returned.
type ItemOption func(*marketstore.Item)

// WithAttribute sets one payload attribute on the seeded item.
func WithAttribute(name string, value any) ItemOption {
	return func(item *marketstore.Item) {
		av, err := marketstore.MarshalAttributes(map[string]any{name: value})
		if err != nil {
			panic(err)
		}
		item.Attributes[name] = av[name]
	}
}

// WithTimestamps sets both envelope timestamps.
func WithTimestamps(t time.Time) ItemOption {
	return func(item *marketstore.Item) {
		item.CreatedAt = t
		item.UpdatedAt = t
	}
}

func build(item *marketstore.Item, payload map[string]any, opts []ItemOption) *marketstore.Item {
	attrs, err := marketstore.MarshalAttributes(payload)
	if err != nil {
		panic(err)
	}
	item.Attributes = attrs
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// UserItem seeds an active talent-role user profile.
func UserItem(userID, email string, opts ...ItemOption) *marketstore.Item {
	return build(&marketstore.Item{
		Key:    marketstore.UserKey(userID),
		Kind:   marketstore.KindUser,
		Index1: marketstore.UserRoleIndexKey("TALENT", userID),
		Index2: marketstore.UserStatusIndexKey("ACTIVE", userID),
	}, map[string]any{
		"userId": userID,
		"email":  email,
		"role":   "TALENT",
		"status": "ACTIVE",
	}, opts)
}

// StartupItem seeds a public, active startup owned by founderID.
func StartupItem(startupID, founderID string, opts ...ItemOption) *marketstore.Item {
	return build(&marketstore.Item{
		Key:    marketstore.StartupKey(startupID),
		Kind:   marketstore.KindStartup,
		Index1: marketstore.StartupFounderIndexKey(founderID, startupID),
		Index2: marketstore.StartupDiscoveryIndexKey("PUBLIC", "ACTIVE", startupID),
	}, map[string]any{
		"startupId":      startupID,
		"founderId":      founderID,
		"name":           "startup " + startupID,
		"visibility":     "PUBLIC",
		"status":         "ACTIVE",
		"applicantCount": 0,
	}, opts)
}

// RoleItem seeds an open role under a startup.
func RoleItem(startupID, roleID string, createdAt time.Time, opts ...ItemOption) *marketstore.Item {
	item := build(&marketstore.Item{
		Key:    marketstore.RoleKey(startupID, roleID),
		Kind:   marketstore.KindStartupRole,
		Index1: marketstore.OpenRoleIndexKey(true, createdAt, roleID),
	}, map[string]any{
		"startupId": startupID,
		"roleId":    roleID,
		"title":     "role " + roleID,
		"isOpen":    true,
	}, opts)
	item.CreatedAt = createdAt
	item.UpdatedAt = createdAt
	return item
}

// ApplicationItem seeds a submitted application.
func ApplicationItem(applicationID, applicantID, startupID, roleID string, createdAt time.Time, opts ...ItemOption) *marketstore.Item {
	item := build(&marketstore.Item{
		Key:    marketstore.ApplicationKey(applicationID),
		Kind:   marketstore.KindApplication,
		Index1: marketstore.ApplicationApplicantIndexKey(applicantID, applicationID),
		Index2: marketstore.ApplicationStatusIndexKey(startupID, roleID, "SUBMITTED", createdAt),
	}, map[string]any{
		"applicationId": applicationID,
		"applicantId":   applicantID,
		"startupId":     startupID,
		"roleId":        roleID,
		"status":        "SUBMITTED",
	}, opts)
	item.CreatedAt = createdAt
	item.UpdatedAt = createdAt
	return item
}

// NotificationItem seeds an unread notification for a user.
func NotificationItem(userID, notificationID string, opts ...ItemOption) *marketstore.Item {
	return build(&marketstore.Item{
		Key:  marketstore.NotificationKey(userID, notificationID),
		Kind: marketstore.KindNotification,
	}, map[string]any{
		"notificationId": notificationID,
		"userId":         userID,
		"message":        "notification " + notificationID,
		"isRead":         false,
	}, opts)
}

// Seed writes items through the store so they pass through the production
// marshaling path.
func Seed(t *testing.T, store *marketstore.Store, items ...*marketstore.Item) {
	t.Helper()
	for _, item := range items {
		if err := store.Put(context.Background(), item); err != nil {
			t.Fatalf("seed %s/%s: %v", item.Key.Partition, item.Key.Sort, err)
		}
	}
}
