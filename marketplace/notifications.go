package marketplace

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"github.com/collabhub/marketstore"
)

// notify delivers an in-app notification to one user.
func (s *Service) notify(ctx context.Context, userID, kind, message, referenceID string) error {
	n := Notification{
		NotificationID: s.newID(),
		UserID:         userID,
		Type:           kind,
		Message:        message,
		ReferenceID:    referenceID,
	}
	attrs, err := marketstore.MarshalAttributes(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return s.store.Put(ctx, &marketstore.Item{
		Key:        marketstore.NotificationKey(userID, n.NotificationID),
		Kind:       marketstore.KindNotification,
		Attributes: attrs,
	})
}

// ListNotifications pages through a user's notifications. With unreadOnly
// set, read notifications are filtered out after the key read, so pages
// can come back short while more remain; only an empty cursor ends the
// listing.
func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int, cursor string) (*Page[Notification], error) {
	q := marketstore.PartitionQuery{
		Partition:  marketstore.UserKey(userID).Partition,
		SortPrefix: marketstore.SortPrefixNotification,
		Limit:      limit,
		Cursor:     cursor,
	}
	if unreadOnly {
		q.Filter = expression.Name("isRead").Equal(expression.Value(false))
	}
	result, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeNotificationValue)
}

// MarkNotificationRead flags one notification as read. Marking an
// already-read notification is a no-op rewrite.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return s.store.Update(ctx, marketstore.NotificationKey(userID, notificationID), marketstore.Patch{
		"isRead": true,
	}, marketstore.WithCondition(marketstore.ConditionItemExists()))
}

// MarkAllNotificationsRead flags every unread notification of a user.
// Each notification is updated individually; a failure partway leaves
// earlier ones marked.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	cursor := ""
	for {
		page, err := s.ListNotifications(ctx, userID, true, 0, cursor)
		if err != nil {
			return err
		}
		for _, n := range page.Items {
			if err := s.MarkNotificationRead(ctx, userID, n.NotificationID); err != nil {
				return err
			}
		}
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}

// DeleteNotification removes one notification. Deleting a missing one
// succeeds.
func (s *Service) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	return s.store.Delete(ctx, marketstore.NotificationKey(userID, notificationID))
}

func decodeNotificationValue(item *marketstore.Item) (Notification, error) {
	var n Notification
	if err := marketstore.UnmarshalAttributes(item.Attributes, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	stampTimes(item, &n.CreatedAt, &n.UpdatedAt)
	return n, nil
}
