package marketplace

import (
	"context"
	"fmt"

	"github.com/collabhub/marketstore"
)

// CreateStartup lists a new startup for the given founder. New startups
// enter moderation as PENDING_REVIEW and stay out of discovery until
// activated.
func (s *Service) CreateStartup(ctx context.Context, startup Startup) (*Startup, error) {
	if startup.FounderID == "" {
		return nil, fmt.Errorf("startup founder is required")
	}
	if startup.Name == "" {
		return nil, fmt.Errorf("startup name is required")
	}
	startup.StartupID = s.newID()
	startup.Status = StartupPendingReview
	if startup.Visibility == "" {
		startup.Visibility = VisibilityPublic
	}

	attrs, err := marketstore.MarshalAttributes(startup)
	if err != nil {
		return nil, fmt.Errorf("encode startup: %w", err)
	}
	item := &marketstore.Item{
		Key:        marketstore.StartupKey(startup.StartupID),
		Kind:       marketstore.KindStartup,
		Index1:     marketstore.StartupFounderIndexKey(startup.FounderID, startup.StartupID),
		Index2:     marketstore.StartupDiscoveryIndexKey(string(startup.Visibility), string(startup.Status), startup.StartupID),
		Attributes: attrs,
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, err
	}
	stampTimes(item, &startup.CreatedAt, &startup.UpdatedAt)

	if err := s.audit(ctx, startup.FounderID, "STARTUP_CREATED", startup.StartupID, startup.Name); err != nil {
		return nil, err
	}
	return &startup, nil
}

// GetStartup loads a startup by ID.
func (s *Service) GetStartup(ctx context.Context, startupID string) (*Startup, error) {
	var startup Startup
	item, err := s.getEntity(ctx, marketstore.StartupKey(startupID), "startup "+startupID, &startup)
	if err != nil {
		return nil, err
	}
	stampTimes(item, &startup.CreatedAt, &startup.UpdatedAt)
	return &startup, nil
}

// UpdateStartup merges descriptive fields into the startup item. Fields
// that drive index placement (founder, visibility, status) have dedicated
// operations and are rejected here.
func (s *Service) UpdateStartup(ctx context.Context, startupID string, patch marketstore.Patch) error {
	for _, locked := range []string{"startupId", "founderId", "visibility", "status"} {
		if _, ok := patch[locked]; ok {
			return fmt.Errorf("startup field %s cannot be patched", locked)
		}
	}
	return s.store.Update(ctx, marketstore.StartupKey(startupID), patch,
		marketstore.WithCondition(marketstore.ConditionItemExists()))
}

// SetStartupStatus moves a startup between moderation states, guarded by
// the expected current status. The discovery index key is recomputed from
// the new status in the same update, so activation and suspension take
// effect in discovery without a second write.
func (s *Service) SetStartupStatus(ctx context.Context, startupID string, from, to StartupStatus) error {
	if to == "" {
		return fmt.Errorf("target startup status is required")
	}
	startup, err := s.GetStartup(ctx, startupID)
	if err != nil {
		return err
	}
	index := marketstore.StartupDiscoveryIndexKey(string(startup.Visibility), string(to), startupID)
	err = s.store.Update(ctx, marketstore.StartupKey(startupID), marketstore.Patch{
		"status":                                 string(to),
		marketstore.AttributeNameIndex2Partition: index.Partition,
		marketstore.AttributeNameIndex2Sort:      index.Sort,
	}, marketstore.WithCondition(marketstore.ConditionAttributeEquals("status", string(from))))
	if err != nil {
		return err
	}
	return s.audit(ctx, "", "STARTUP_STATUS_CHANGED", startupID, string(from)+">"+string(to))
}

// SetStartupVisibility flips a startup between public and private,
// rewriting the discovery index key alongside.
func (s *Service) SetStartupVisibility(ctx context.Context, startupID string, visibility Visibility) error {
	if visibility == "" {
		return fmt.Errorf("startup visibility is required")
	}
	startup, err := s.GetStartup(ctx, startupID)
	if err != nil {
		return err
	}
	index := marketstore.StartupDiscoveryIndexKey(string(visibility), string(startup.Status), startupID)
	return s.store.Update(ctx, marketstore.StartupKey(startupID), marketstore.Patch{
		"visibility":                             string(visibility),
		marketstore.AttributeNameIndex2Partition: index.Partition,
		marketstore.AttributeNameIndex2Sort:      index.Sort,
	}, marketstore.WithCondition(marketstore.ConditionItemExists()))
}

// ListFounderStartups pages through the startups owned by one founder.
func (s *Service) ListFounderStartups(ctx context.Context, founderID string, limit int, cursor string) (*Page[Startup], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric1,
		Partition: marketstore.FounderPartition(founderID),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeStartupValue)
}

// DiscoverStartups pages through startups matching a visibility and
// moderation status, for the browse surface.
func (s *Service) DiscoverStartups(ctx context.Context, visibility Visibility, status StartupStatus, limit int, cursor string) (*Page[Startup], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric2,
		Partition: marketstore.DiscoveryPartition(string(visibility), string(status)),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeStartupValue)
}

// ListNewestStartups pages through all startups newest-first, regardless
// of visibility. Intended for admin and moderation surfaces.
func (s *Service) ListNewestStartups(ctx context.Context, limit int, cursor string) (*Page[Startup], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:      marketstore.IndexByKind,
		Partition:  string(marketstore.KindStartup),
		Limit:      limit,
		Descending: true,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeStartupValue)
}

// CreateRole opens a new position under a startup. The role enters the
// open-roles feed immediately.
func (s *Service) CreateRole(ctx context.Context, role StartupRole) (*StartupRole, error) {
	if role.StartupID == "" {
		return nil, fmt.Errorf("role startup is required")
	}
	if role.Title == "" {
		return nil, fmt.Errorf("role title is required")
	}
	if _, err := s.GetStartup(ctx, role.StartupID); err != nil {
		return nil, err
	}
	role.RoleID = s.newID()
	role.IsOpen = true
	role.ApplicantCount = 0
	createdAt := s.tick()

	attrs, err := marketstore.MarshalAttributes(role)
	if err != nil {
		return nil, fmt.Errorf("encode role: %w", err)
	}
	item := &marketstore.Item{
		Key:        marketstore.RoleKey(role.StartupID, role.RoleID),
		Kind:       marketstore.KindStartupRole,
		CreatedAt:  createdAt,
		Index1:     marketstore.OpenRoleIndexKey(true, createdAt, role.RoleID),
		Attributes: attrs,
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, err
	}
	stampTimes(item, &role.CreatedAt, &role.UpdatedAt)
	return &role, nil
}

// GetRole loads one role of a startup.
func (s *Service) GetRole(ctx context.Context, startupID, roleID string) (*StartupRole, error) {
	var role StartupRole
	item, err := s.getEntity(ctx, marketstore.RoleKey(startupID, roleID), "role "+roleID, &role)
	if err != nil {
		return nil, err
	}
	stampTimes(item, &role.CreatedAt, &role.UpdatedAt)
	return &role, nil
}

// ListRoles pages through all roles of a startup, open or closed.
func (s *Service) ListRoles(ctx context.Context, startupID string, limit int, cursor string) (*Page[StartupRole], error) {
	result, err := s.store.Query(ctx, marketstore.PartitionQuery{
		Partition:  marketstore.StartupKey(startupID).Partition,
		SortPrefix: marketstore.SortPrefixRole,
		Limit:      limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeRoleValue)
}

// OpenRolesFeed pages through every open role across all startups,
// newest-first. Closing a role removes it from the feed by dropping its
// sparse index key.
func (s *Service) OpenRolesFeed(ctx context.Context, limit int, cursor string) (*Page[StartupRole], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:      marketstore.IndexGeneric1,
		Partition:  marketstore.OpenRolesPartition(),
		Limit:      limit,
		Descending: true,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeRoleValue)
}

// SetRoleOpen opens or closes a role. Closing removes the sparse feed key
// so the role drops out of OpenRolesFeed; reopening restores it with the
// role's original creation time so feed order is stable.
func (s *Service) SetRoleOpen(ctx context.Context, startupID, roleID string, open bool) error {
	item, err := s.store.Get(ctx, marketstore.RoleKey(startupID, roleID))
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}

	patch := marketstore.Patch{"isOpen": open}
	opts := []marketstore.UpdateOption{marketstore.WithCondition(marketstore.ConditionItemExists())}
	if open {
		index := marketstore.OpenRoleIndexKey(true, item.CreatedAt, roleID)
		patch[marketstore.AttributeNameIndex1Partition] = index.Partition
		patch[marketstore.AttributeNameIndex1Sort] = index.Sort
	} else {
		opts = append(opts, marketstore.WithRemove(
			marketstore.AttributeNameIndex1Partition,
			marketstore.AttributeNameIndex1Sort,
		))
	}
	return s.store.Update(ctx, marketstore.RoleKey(startupID, roleID), patch, opts...)
}

func decodeStartupValue(item *marketstore.Item) (Startup, error) {
	var startup Startup
	if err := marketstore.UnmarshalAttributes(item.Attributes, &startup); err != nil {
		return Startup{}, fmt.Errorf("decode startup: %w", err)
	}
	stampTimes(item, &startup.CreatedAt, &startup.UpdatedAt)
	return startup, nil
}

func decodeRoleValue(item *marketstore.Item) (StartupRole, error) {
	var role StartupRole
	if err := marketstore.UnmarshalAttributes(item.Attributes, &role); err != nil {
		return StartupRole{}, fmt.Errorf("decode role: %w", err)
	}
	stampTimes(item, &role.CreatedAt, &role.UpdatedAt)
	return role, nil
}
