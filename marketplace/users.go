package marketplace

import (
	"context"
	"fmt"

	"github.com/collabhub/marketstore"
)

// CreateUser registers a new profile and returns it with its minted ID.
// The email lands in the email index for exact-match lookup.
func (s *Service) CreateUser(ctx context.Context, user User) (*User, error) {
	if user.Email == "" {
		return nil, fmt.Errorf("user email is required")
	}
	if user.Role == "" {
		return nil, fmt.Errorf("user role is required")
	}
	user.UserID = s.newID()
	if user.Status == "" {
		user.Status = UserActive
	}

	attrs, err := marketstore.MarshalAttributes(user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	item := &marketstore.Item{
		Key:        marketstore.UserKey(user.UserID),
		Kind:       marketstore.KindUser,
		Index1:     marketstore.UserRoleIndexKey(string(user.Role), user.UserID),
		Index2:     marketstore.UserStatusIndexKey(string(user.Status), user.UserID),
		Attributes: attrs,
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, err
	}
	stampTimes(item, &user.CreatedAt, &user.UpdatedAt)

	if err := s.audit(ctx, user.UserID, "USER_CREATED", user.UserID, string(user.Role)); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser loads a profile by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	item, err := s.getEntity(ctx, marketstore.UserKey(userID), "user "+userID, &user)
	if err != nil {
		return nil, err
	}
	stampTimes(item, &user.CreatedAt, &user.UpdatedAt)
	return &user, nil
}

// FindUserByEmail resolves a profile by exact email through the email
// index. The index is eventually consistent, so a profile created moments
// ago may not resolve yet.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexByEmail,
		Partition: email,
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
	}
	return decodeUser(result.Items[0])
}

// UpdateProfile merges the given profile fields into the user's item.
// Only non-identity fields can change this way; role and status have
// dedicated operations because they drive index placement.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch marketstore.Patch) error {
	for _, locked := range []string{"userId", "email", "role", "status"} {
		if _, ok := patch[locked]; ok {
			return fmt.Errorf("profile field %s cannot be patched", locked)
		}
	}
	return s.store.Update(ctx, marketstore.UserKey(userID), patch,
		marketstore.WithCondition(marketstore.ConditionItemExists()))
}

// SetUserStatus transitions a user between account states, guarded by the
// expected current status. The status index key is rewritten in the same
// update.
func (s *Service) SetUserStatus(ctx context.Context, userID string, from, to UserStatus) error {
	if to == "" {
		return fmt.Errorf("target user status is required")
	}
	index := marketstore.UserStatusIndexKey(string(to), userID)
	err := s.store.Update(ctx, marketstore.UserKey(userID), marketstore.Patch{
		"status":                                 string(to),
		marketstore.AttributeNameIndex2Partition: index.Partition,
		marketstore.AttributeNameIndex2Sort:      index.Sort,
	}, marketstore.WithCondition(marketstore.ConditionAttributeEquals("status", string(from))))
	if err != nil {
		return err
	}
	return s.audit(ctx, "", "USER_STATUS_CHANGED", userID, string(from)+">"+string(to))
}

// ListUsersByRole pages through users holding one marketplace role.
func (s *Service) ListUsersByRole(ctx context.Context, role UserRole, limit int, cursor string) (*Page[User], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric1,
		Partition: marketstore.UserRolePartition(string(role)),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeUserValue)
}

// ListUsersByStatus pages through users in one account state.
func (s *Service) ListUsersByStatus(ctx context.Context, status UserStatus, limit int, cursor string) (*Page[User], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric2,
		Partition: marketstore.UserStatusPartition(string(status)),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeUserValue)
}

// ListNewestUsers pages through all users newest-first, regardless of
// role or status. Intended for admin surfaces.
func (s *Service) ListNewestUsers(ctx context.Context, limit int, cursor string) (*Page[User], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:      marketstore.IndexByKind,
		Partition:  string(marketstore.KindUser),
		Limit:      limit,
		Descending: true,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeUserValue)
}

func decodeUser(item *marketstore.Item) (*User, error) {
	var user User
	if err := marketstore.UnmarshalAttributes(item.Attributes, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	stampTimes(item, &user.CreatedAt, &user.UpdatedAt)
	return &user, nil
}

func decodeUserValue(item *marketstore.Item) (User, error) {
	user, err := decodeUser(item)
	if err != nil {
		return User{}, err
	}
	return *user, nil
}
