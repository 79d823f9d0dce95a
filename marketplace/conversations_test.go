package marketplace_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/collabhub/marketstore"
	"github.com/collabhub/marketstore/marketplace"
)

func TestStartConversationFansOut(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)

	conv, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}
	if len(conv.Participants) != 2 {
		t.Fatalf("Expected 2 participants, got %v", conv.Participants)
	}

	// One authoritative record plus one copy per participant.
	if raw := mem.Raw("CONVERSATION#"+conv.ConversationID, "METADATA"); raw == nil {
		t.Error("Expected authoritative record")
	}
	for _, userID := range conv.Participants {
		key := marketstore.ParticipantConversationKey(userID, conv.CreatedAt, conv.ConversationID)
		if raw := mem.Raw(key.Partition, key.Sort); raw == nil {
			t.Errorf("Expected fan-out copy for %s", userID)
		}
	}
}

func TestStartConversationDeduplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)

	first, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}
	// Same pair, opposite direction.
	second, err := svc.StartConversation(ctx, bob.UserID, alice.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("Expected existing thread %s, got new thread %s", first.ConversationID, second.ConversationID)
	}
}

func TestStartConversationUnknownParticipant(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	_, err := svc.StartConversation(context.Background(), alice.UserID, "ghost")
	if !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSendMessageRefreshesPreviews(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)
	conv, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}

	long := strings.Repeat("x", 80)
	msg, err := svc.SendMessage(ctx, conv.ConversationID, alice.UserID, long)
	if err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	if len(msg.ReadBy) != 1 || msg.ReadBy[0] != alice.UserID {
		t.Errorf("Expected sender in read set, got %v", msg.ReadBy)
	}

	// Both inbox copies carry the truncated preview.
	for _, userID := range []string{alice.UserID, bob.UserID} {
		inbox, err := svc.ListConversations(ctx, userID, 0, "")
		if err != nil {
			t.Fatalf("Failed to list inbox for %s: %v", userID, err)
		}
		if len(inbox.Items) != 1 {
			t.Fatalf("Expected 1 thread for %s, got %d", userID, len(inbox.Items))
		}
		preview := inbox.Items[0].LastMessagePreview
		if len(preview) != 53 || !strings.HasSuffix(preview, "...") {
			t.Errorf("Expected 50-char truncated preview, got %q", preview)
		}
	}

	// The recipient gets a notification, the sender does not.
	bobNotes, err := svc.ListNotifications(ctx, bob.UserID, true, 0, "")
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(bobNotes.Items) != 1 || bobNotes.Items[0].Type != "NEW_MESSAGE" {
		t.Errorf("Expected one NEW_MESSAGE notification, got %+v", bobNotes.Items)
	}
	aliceNotes, err := svc.ListNotifications(ctx, alice.UserID, true, 0, "")
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(aliceNotes.Items) != 0 {
		t.Errorf("Expected no notification for sender, got %d", len(aliceNotes.Items))
	}
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)
	conv, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}

	// Three-byte runes put the 50-byte mark mid-sequence.
	body := strings.Repeat("世", 60)
	if _, err := svc.SendMessage(ctx, conv.ConversationID, alice.UserID, body); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	inbox, err := svc.ListConversations(ctx, alice.UserID, 0, "")
	if err != nil {
		t.Fatalf("Failed to list inbox: %v", err)
	}
	if len(inbox.Items) != 1 {
		t.Fatalf("Expected 1 thread, got %d", len(inbox.Items))
	}
	preview := inbox.Items[0].LastMessagePreview
	if !utf8.ValidString(preview) {
		t.Errorf("Preview is not valid UTF-8: %q", preview)
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("Expected truncated preview, got %q", preview)
	}
	if len(preview) > 53 {
		t.Errorf("Expected preview within the truncation bound, got %d bytes", len(preview))
	}
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)
	eve := createUser(t, svc, "eve@example.com", marketplace.RoleInvestor)
	conv, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}

	_, err = svc.SendMessage(ctx, conv.ConversationID, eve.UserID, "hi")
	if !errors.Is(err, marketplace.ErrNotParticipant) {
		t.Errorf("Expected ErrNotParticipant, got %v", err)
	}
	_, err = svc.ListMessages(ctx, conv.ConversationID, eve.UserID, 0, "")
	if !errors.Is(err, marketplace.ErrNotParticipant) {
		t.Errorf("Expected ErrNotParticipant, got %v", err)
	}
}

func TestListMessagesChronological(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)
	conv, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}

	bodies := []string{"first", "second", "third"}
	for _, body := range bodies {
		if _, err := svc.SendMessage(ctx, conv.ConversationID, alice.UserID, body); err != nil {
			t.Fatalf("Failed to send %q: %v", body, err)
		}
	}

	msgs, err := svc.ListMessages(ctx, conv.ConversationID, bob.UserID, 0, "")
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(msgs.Items) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs.Items))
	}
	for i, body := range bodies {
		if msgs.Items[i].Body != body {
			t.Errorf("Expected %q at position %d, got %q", body, i, msgs.Items[i].Body)
		}
	}
}

func TestMarkConversationRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice@example.com", marketplace.RoleTalent)
	bob := createUser(t, svc, "bob@example.com", marketplace.RoleFounder)
	conv, err := svc.StartConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("Failed to start conversation: %v", err)
	}
	for n := 0; n < 2; n++ {
		if _, err := svc.SendMessage(ctx, conv.ConversationID, alice.UserID, "hello"); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
	}

	if err := svc.MarkConversationRead(ctx, conv.ConversationID, bob.UserID); err != nil {
		t.Fatalf("Failed to mark read: %v", err)
	}
	msgs, err := svc.ListMessages(ctx, conv.ConversationID, bob.UserID, 0, "")
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	for _, msg := range msgs.Items {
		if len(msg.ReadBy) != 2 {
			t.Errorf("Expected both participants in read set, got %v", msg.ReadBy)
		}
	}
}
