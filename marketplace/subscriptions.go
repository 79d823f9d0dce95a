package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/collabhub/marketstore"
)

// SetSubscription upserts a user's billing record, then mirrors the tier
// onto the profile item so profile reads need no second fetch. The two
// writes are not atomic: a failure between them leaves the mirror stale
// until the next SetSubscription.
func (s *Service) SetSubscription(ctx context.Context, userID string, tier SubscriptionTier, renewsAt time.Time) (*Subscription, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	sub := Subscription{
		UserID:   userID,
		Tier:     tier,
		Active:   true,
		RenewsAt: renewsAt,
	}
	attrs, err := marketstore.MarshalAttributes(sub)
	if err != nil {
		return nil, fmt.Errorf("encode subscription: %w", err)
	}
	item := &marketstore.Item{
		Key:        marketstore.SubscriptionKey(userID),
		Kind:       marketstore.KindSubscription,
		Index2:     marketstore.SubscriptionStatusIndexKey(string(SubscriptionActive), userID),
		Attributes: attrs,
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, err
	}
	stampTimes(item, &sub.CreatedAt, &sub.UpdatedAt)

	err = s.store.Update(ctx, marketstore.UserKey(userID), marketstore.Patch{
		"subscriptionTier": string(tier),
	}, marketstore.WithCondition(marketstore.ConditionItemExists()))
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscription loads a user's billing record.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	item, err := s.getEntity(ctx, marketstore.SubscriptionKey(userID), "subscription for "+userID, &sub)
	if err != nil {
		return nil, err
	}
	stampTimes(item, &sub.CreatedAt, &sub.UpdatedAt)
	return &sub, nil
}

// CancelSubscription deactivates the billing record and resets the
// profile mirror to the free tier. The status index key moves to the
// cancelled partition in the same update that flips the attributes.
func (s *Service) CancelSubscription(ctx context.Context, userID string) error {
	index := marketstore.SubscriptionStatusIndexKey(string(SubscriptionCancelled), userID)
	err := s.store.Update(ctx, marketstore.SubscriptionKey(userID), marketstore.Patch{
		"active":                                 false,
		"tier":                                   string(TierFree),
		marketstore.AttributeNameIndex2Partition: index.Partition,
		marketstore.AttributeNameIndex2Sort:      index.Sort,
	}, marketstore.WithCondition(marketstore.ConditionItemExists()))
	if err != nil {
		return err
	}
	return s.store.Update(ctx, marketstore.UserKey(userID), marketstore.Patch{
		"subscriptionTier": string(TierFree),
	}, marketstore.WithCondition(marketstore.ConditionItemExists()))
}

// ListSubscriptionsByStatus pages through subscriptions in one billing
// state, e.g. counting active subscriptions for admin metrics.
func (s *Service) ListSubscriptionsByStatus(ctx context.Context, status SubscriptionStatus, limit int, cursor string) (*Page[Subscription], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric2,
		Partition: marketstore.SubscriptionStatusPartition(string(status)),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeSubscriptionValue)
}

func decodeSubscriptionValue(item *marketstore.Item) (Subscription, error) {
	var sub Subscription
	if err := marketstore.UnmarshalAttributes(item.Attributes, &sub); err != nil {
		return Subscription{}, fmt.Errorf("decode subscription: %w", err)
	}
	stampTimes(item, &sub.CreatedAt, &sub.UpdatedAt)
	return sub, nil
}
