package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/collabhub/marketstore"
)

// AppendAudit records one audit entry. Entries are partitioned by the
// calendar day of the entry time and ordered by timestamp within the day;
// entries with an actor also land in the per-actor index.
func (s *Service) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if entry.Action == "" {
		return fmt.Errorf("audit action is required")
	}
	if entry.AuditID == "" {
		entry.AuditID = s.newID()
	}
	createdAt := s.tick()

	attrs, err := marketstore.MarshalAttributes(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	return s.store.Put(ctx, &marketstore.Item{
		Key:        marketstore.AuditLogKey(createdAt, entry.AuditID),
		Kind:       marketstore.KindAuditLog,
		CreatedAt:  createdAt,
		Index1:     marketstore.AuditActorIndexKey(entry.ActorID, createdAt),
		Attributes: attrs,
	})
}

// ListAuditByDay pages through one day's audit entries in timestamp order.
func (s *Service) ListAuditByDay(ctx context.Context, day time.Time, limit int, cursor string) (*Page[AuditEntry], error) {
	result, err := s.store.Query(ctx, marketstore.PartitionQuery{
		Partition: marketstore.AuditDayPartition(day),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeAuditValue)
}

// ListAuditByActor pages through one user's audit trail across days.
func (s *Service) ListAuditByActor(ctx context.Context, actorID string, limit int, cursor string) (*Page[AuditEntry], error) {
	result, err := s.store.QueryIndex(ctx, marketstore.IndexQuery{
		Index:      marketstore.IndexGeneric1,
		Partition:  marketstore.ActorPartition(actorID),
		SortPrefix: marketstore.SortPrefixAudit,
		Limit:      limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	return decodePage(result, decodeAuditValue)
}

func decodeAuditValue(item *marketstore.Item) (AuditEntry, error) {
	var entry AuditEntry
	if err := marketstore.UnmarshalAttributes(item.Attributes, &entry); err != nil {
		return AuditEntry{}, fmt.Errorf("decode audit entry: %w", err)
	}
	stampTimes(item, &entry.CreatedAt, &entry.UpdatedAt)
	return entry, nil
}
