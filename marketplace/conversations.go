package marketplace

import (
	"context"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/collabhub/marketstore"
)

const previewLength = 50

// StartConversation opens a thread between the creator and the other
// participants. If a thread with exactly the same participant set already
// exists in the creator's inbox, it is returned instead of creating a
// duplicate. The authoritative record is written first, then one fan-out
// copy per participant.
func (s *Service) StartConversation(ctx context.Context, creatorID string, participantIDs ...string) (*Conversation, error) {
	participants := append([]string{creatorID}, participantIDs...)
	slices.Sort(participants)
	participants = slices.Compact(participants)
	if len(participants) < 2 {
		return nil, fmt.Errorf("conversation needs at least two participants")
	}

	keys := make([]marketstore.Key, len(participants))
	for i, userID := range participants {
		keys[i] = marketstore.UserKey(userID)
	}
	found, err := s.batch.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	if len(found) != len(participants) {
		return nil, fmt.Errorf("conversation participant: %w", ErrNotFound)
	}

	if existing, err := s.findConversation(ctx, creatorID, participants); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	conv := Conversation{
		ConversationID: s.newID(),
		Participants:   participants,
		CreatedBy:      creatorID,
	}
	createdAt := s.tick()

	authoritative, copies, err := conversationItems(&conv, createdAt)
	if err != nil {
		return nil, err
	}
	if err := s.denorm.FanOut(ctx, authoritative, copies); err != nil {
		return nil, err
	}
	conv.CreatedAt = createdAt
	conv.UpdatedAt = createdAt
	return &conv, nil
}

// findConversation scans the creator's inbox for a thread with exactly
// the given (sorted) participant set.
func (s *Service) findConversation(ctx context.Context, userID string, participants []string) (*Conversation, error) {
	cursor := ""
	for {
		result, err := s.store.Query(ctx, marketstore.PartitionQuery{
			Partition:  marketstore.ParticipantPartition(userID),
			SortPrefix: marketstore.SortPrefixConversation,
			Cursor:     cursor,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range result.Items {
			conv, err := decodeConversationValue(item)
			if err != nil {
				return nil, err
			}
			if slices.Equal(conv.Participants, participants) {
				return &conv, nil
			}
		}
		if result.NextCursor == "" {
			return nil, nil
		}
		cursor = result.NextCursor
	}
}

// GetConversation loads the authoritative conversation record, visible
// only to its participants.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	var conv Conversation
	item, err := s.getEntity(ctx, marketstore.ConversationKey(conversationID), "conversation "+conversationID, &conv)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(conv.Participants, userID) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotParticipant)
	}
	stampTimes(item, &conv.CreatedAt, &conv.UpdatedAt)
	return &conv, nil
}

// SendMessage appends a message to a conversation and refreshes the
// preview on the authoritative record and every fan-out copy. The message
// write, the authoritative update, and the copy rewrites are separate
// calls; inboxes may briefly show a stale preview.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, body string) (*Message, error) {
	conv, err := s.GetConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	sentAt := s.tick()

	// The send time leads the message ID so the sort key orders
	// chronologically within the conversation partition.
	msg := Message{
		MessageID:      marketstore.FormatTime(sentAt) + "#" + s.newID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		ReadBy:         []string{senderID},
	}
	attrs, err := marketstore.MarshalAttributes(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	item := &marketstore.Item{
		Key:        marketstore.MessageKey(conversationID, msg.MessageID),
		Kind:       marketstore.KindMessage,
		CreatedAt:  sentAt,
		Attributes: attrs,
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, err
	}
	msg.CreatedAt = item.CreatedAt
	msg.UpdatedAt = item.UpdatedAt

	conv.LastMessagePreview = truncatePreview(body)
	conv.LastMessageAt = sentAt
	if err := s.store.Update(ctx, marketstore.ConversationKey(conversationID), marketstore.Patch{
		"lastMessagePreview": conv.LastMessagePreview,
		"lastMessageAt":      sentAt.Unix(),
	}, marketstore.WithCondition(marketstore.ConditionItemExists())); err != nil {
		return nil, err
	}

	_, copies, err := conversationItems(conv, conv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.denorm.Refan(ctx, copies); err != nil {
		return nil, err
	}

	for _, userID := range conv.Participants {
		if userID == senderID {
			continue
		}
		if err := s.notify(ctx, userID, "NEW_MESSAGE", truncatePreview(body), conversationID); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

// ListConversations pages through a user's inbox, newest thread first.
// Entries are fan-out copies; their previews trail the authoritative
// record until the next refan completes.
func (s *Service) ListConversations(ctx context.Context, userID string, limit int, cursor string) (*Page[Conversation], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:      marketstore.IndexGeneric1,
		Partition:  marketstore.ParticipantPartition(userID),
		SortPrefix: marketstore.SortPrefixConversation,
		Limit:      limit,
		Descending: true,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeConversationValue)
}

// ListMessages pages through a conversation's messages oldest-first.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID string, limit int, cursor string) (*Page[Message], error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	result, err := s.store.Query(ctx, marketstore.PartitionQuery{
		Partition:  marketstore.ConversationKey(conversationID).Partition,
		SortPrefix: marketstore.SortPrefixMessage,
		Limit:      limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeMessageValue)
}

// MarkConversationRead adds the user to the read set of every message
// they have not read yet. Each message is updated individually; a failure
// partway leaves earlier messages marked.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	cursor := ""
	for {
		page, err := s.ListMessages(ctx, conversationID, userID, 0, cursor)
		if err != nil {
			return err
		}
		for _, msg := range page.Items {
			if slices.Contains(msg.ReadBy, userID) {
				continue
			}
			err := s.store.Update(ctx, marketstore.MessageKey(conversationID, msg.MessageID), marketstore.Patch{
				"readBy": append(msg.ReadBy, userID),
			}, marketstore.WithCondition(marketstore.ConditionItemExists()))
			if err != nil {
				return err
			}
		}
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}

// conversationItems builds the authoritative item and one fan-out copy
// per participant, all carrying the same payload.
func conversationItems(conv *Conversation, createdAt time.Time) (*marketstore.Item, []*marketstore.Item, error) {
	attrs, err := marketstore.MarshalAttributes(conv)
	if err != nil {
		return nil, nil, fmt.Errorf("encode conversation: %w", err)
	}
	authoritative := &marketstore.Item{
		Key:        marketstore.ConversationKey(conv.ConversationID),
		Kind:       marketstore.KindConversation,
		CreatedAt:  createdAt,
		Attributes: attrs,
	}
	copies := make([]*marketstore.Item, 0, len(conv.Participants))
	for _, userID := range conv.Participants {
		copies = append(copies, &marketstore.Item{
			Key:        marketstore.ParticipantConversationKey(userID, createdAt, conv.ConversationID),
			Kind:       marketstore.KindConversation,
			CreatedAt:  createdAt,
			Index1:     marketstore.ConversationFanOutIndexKey(userID, createdAt, conv.ConversationID),
			Attributes: attrs,
		})
	}
	return authoritative, copies, nil
}

// truncatePreview shortens a message body for inbox display. The cut
// backs up to a rune boundary so the preview stays valid UTF-8.
func truncatePreview(body string) string {
	if len(body) <= previewLength {
		return body
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

func decodeConversationValue(item *marketstore.Item) (Conversation, error) {
	var conv Conversation
	if err := marketstore.UnmarshalAttributes(item.Attributes, &conv); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	stampTimes(item, &conv.CreatedAt, &conv.UpdatedAt)
	return conv, nil
}

func decodeMessageValue(item *marketstore.Item) (Message, error) {
	var msg Message
	if err := marketstore.UnmarshalAttributes(item.Attributes, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	stampTimes(item, &msg.CreatedAt, &msg.UpdatedAt)
	return msg, nil
}
