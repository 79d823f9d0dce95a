package marketplace

import (
	"context"
	"fmt"

	"github.com/collabhub/marketstore"
)

// RequestAccess opens an investor's request to view a private startup.
// The request lands in the owning founder's queue, ordered pending-first
// by status then request time.
func (s *Service) RequestAccess(ctx context.Context, requesterID, startupID, message string) (*AccessRequest, error) {
	startup, err := s.GetStartup(ctx, startupID)
	if err != nil {
		return nil, err
	}

	req := AccessRequest{
		AccessID:    s.newID(),
		RequesterID: requesterID,
		StartupID:   startupID,
		FounderID:   startup.FounderID,
		Status:      AccessPending,
		Message:     message,
	}
	createdAt := s.tick()

	attrs, err := marketstore.MarshalAttributes(req)
	if err != nil {
		return nil, fmt.Errorf("encode access request: %w", err)
	}
	item := &marketstore.Item{
		Key:        marketstore.AccessRequestKey(req.AccessID),
		Kind:       marketstore.KindAccessRequest,
		CreatedAt:  createdAt,
		Index1:     marketstore.AccessRequesterIndexKey(requesterID, req.AccessID),
		Index2:     marketstore.AccessFounderIndexKey(startup.FounderID, string(AccessPending), createdAt),
		Attributes: attrs,
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, err
	}
	stampTimes(item, &req.CreatedAt, &req.UpdatedAt)

	if err := s.notify(ctx, startup.FounderID, "ACCESS_REQUESTED", "new access request for "+startup.Name, req.AccessID); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetAccessRequest loads an access request by ID.
func (s *Service) GetAccessRequest(ctx context.Context, accessID string) (*AccessRequest, error) {
	var req AccessRequest
	item, err := s.getEntity(ctx, marketstore.AccessRequestKey(accessID), "access request "+accessID, &req)
	if err != nil {
		return nil, err
	}
	stampTimes(item, &req.CreatedAt, &req.UpdatedAt)
	return &req, nil
}

// ResolveAccessRequest approves or denies a pending request. Only the
// startup's founder may resolve it, and only once: the update is guarded
// on the request still being pending. The founder-queue index key is
// rewritten so resolved requests sort behind pending ones.
func (s *Service) ResolveAccessRequest(ctx context.Context, accessID, founderID string, decision AccessStatus) error {
	if decision != AccessApproved && decision != AccessDenied {
		return fmt.Errorf("invalid access decision %q", decision)
	}
	if founderID == "" {
		return fmt.Errorf("resolving founder is required")
	}
	req, err := s.GetAccessRequest(ctx, accessID)
	if err != nil {
		return err
	}
	if req.FounderID != founderID {
		return fmt.Errorf("access request %s is not owned by founder %s", accessID, founderID)
	}

	index := marketstore.AccessFounderIndexKey(req.FounderID, string(decision), req.CreatedAt)
	err = s.store.Update(ctx, marketstore.AccessRequestKey(accessID), marketstore.Patch{
		"status":                                 string(decision),
		marketstore.AttributeNameIndex2Partition: index.Partition,
		marketstore.AttributeNameIndex2Sort:      index.Sort,
	}, marketstore.WithCondition(marketstore.ConditionAttributeEquals("status", string(AccessPending))))
	if err != nil {
		return err
	}

	if err := s.notify(ctx, req.RequesterID, "ACCESS_RESOLVED", "your access request was "+string(decision), accessID); err != nil {
		return err
	}
	return s.audit(ctx, founderID, "ACCESS_RESOLVED", accessID, string(decision))
}

// ListRequesterAccess pages through the requests one investor has made.
func (s *Service) ListRequesterAccess(ctx context.Context, requesterID string, limit int, cursor string) (*Page[AccessRequest], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric1,
		Partition: marketstore.RequesterPartition(requesterID),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeAccessValue)
}

// ListFounderAccessQueue pages through a founder's incoming requests.
// When status is non-empty, results narrow to that status.
func (s *Service) ListFounderAccessQueue(ctx context.Context, founderID string, status AccessStatus, limit int, cursor string) (*Page[AccessRequest], error) {
	q := marketstore.IndexQuery{
		Index:     marketstore.IndexGeneric2,
		Partition: marketstore.FounderPartition(founderID),
		Limit:     limit,
		Cursor:    cursor,
	}
	if status != "" {
		q.SortPrefix = marketstore.StatusSortPrefix(string(status))
	}
	result, err := s.store.QueryIndex(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeAccessValue)
}

func decodeAccessValue(item *marketstore.Item) (AccessRequest, error) {
	var req AccessRequest
	if err := marketstore.UnmarshalAttributes(item.Attributes, &req); err != nil {
		return AccessRequest{}, fmt.Errorf("decode access request: %w", err)
	}
	stampTimes(item, &req.CreatedAt, &req.UpdatedAt)
	return req, nil
}
