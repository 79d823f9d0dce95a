package marketplace_test

import (
	"context"
	"errors"
	"testing"

	"github.com/collabhub/marketstore"
	"github.com/collabhub/marketstore/marketplace"
)

func TestNotificationReadFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)
	conv, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}
	for n := 0; n < 3; n++ {
		if _, err := svc.SendMessage(ctx, conv.ConversationID, alice.UserID, "ping"); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
	}

	unread, err := svc.ListNotifications(ctx, bob.UserID, true, 0, "")
	if err != nil {
		t.Fatalf("Failed to list unread: %v", err)
	}
	if len(unread.Items) != 3 {
		t.Fatalf("Expected 3 unread notifications, got %d", len(unread.Items))
	}

	if err := svc.MarkNotificationRead(ctx, bob.UserID, unread.Items[0].NotificationID); err != nil {
		t.Fatalf("Failed to mark read: %v", err)
	}
	unread, err = svc.ListNotifications(ctx, bob.UserID, true, 0, "")
	if err != nil {
		t.Fatalf("Failed to list unread: %v", err)
	}
	if len(unread.Items) != 2 {
		t.Errorf("Expected 2 unread after marking one, got %d", len(unread.Items))
	}

	all, err := svc.ListNotifications(ctx, bob.UserID, false, 0, "")
	if err != nil {
		t.Fatalf("Failed to list all: %v", err)
	}
	if len(all.Items) != 3 {
		t.Errorf("Expected all 3 notifications without the filter, got %d", len(all.Items))
	}

	if err := svc.MarkAllNotificationsRead(ctx, bob.UserID); err != nil {
		t.Fatalf("Failed to mark all read: %v", err)
	}
	unread, err = svc.ListNotifications(ctx, bob.UserID, true, 0, "")
	if err != nil {
		t.Fatalf("Failed to list unread: %v", err)
	}
	if len(unread.Items) != 0 {
		t.Errorf("Expected no unread after marking all, got %d", len(unread.Items))
	}

	if err := svc.DeleteNotification(ctx, bob.UserID, all.Items[0].NotificationID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	all, err = svc.ListNotifications(ctx, bob.UserID, false, 0, "")
	if err != nil {
		t.Fatalf("Failed to list all: %v", err)
	}
	if len(all.Items) != 2 {
		t.Errorf("Expected 2 notifications after delete, got %d", len(all.Items))
	}
}

func TestMarkMissingNotification(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.MarkNotificationRead(context.Background(), "u1", "ghost")
	if !errors.Is(err, marketstore.ErrPreconditionFailed) {
		t.Errorf("Expected precondition failure, got %v", err)
	}
}
