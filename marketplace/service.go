package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/collabhub/marketstore"
)

// Service exposes the marketplace operations. It owns no state beyond its
// store handle; construct one per table and share it freely.
type Service struct {
	store  *marketstore.Store
	batch  *marketstore.Batcher
	denorm *marketstore.Denormalizer
	newID  func() string
	tick   marketstore.Clock
}

// Option customizes Service construction.
type Option func(*Service)

// WithIDGenerator overrides how new entity identifiers are minted.
// Defaults to random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithClock overrides the service time source.
func WithClock(clock marketstore.Clock) Option {
	return func(s *Service) { s.tick = clock }
}

// NewService creates a Service over the given store.
func NewService(store *marketstore.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		batch:  marketstore.NewBatcher(store),
		denorm: marketstore.NewDenormalizer(store),
		newID:  uuid.NewString,
		tick:   marketstore.DefaultClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getEntity loads the item at key and decodes its payload into out.
// Returns ErrNotFound when the item is absent, annotated with what.
func (s *Service) getEntity(ctx context.Context, key marketstore.Key, what string, out any) (*marketstore.Item, error) {
	item, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err := marketstore.UnmarshalAttributes(item.Attributes, out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return item, nil
}

// stampTimes copies the envelope timestamps onto entity fields.
func stampTimes(item *marketstore.Item, createdAt, updatedAt *time.Time) {
	*createdAt = item.CreatedAt
	*updatedAt = item.UpdatedAt
}

// audit appends an audit entry for a mutating action. Audit writes are
// best-effort relative to the action they describe; a failed append does
// not roll the action back.
func (s *Service) audit(ctx context.Context, actorID, action, targetID, detail string) error {
	entry := AuditEntry{
		AuditID:  s.newID(),
		ActorID:  actorID,
		Action:   action,
		TargetID: targetID,
		Detail:   detail,
	}
	return s.AppendAudit(ctx, entry)
}

func decodePage[T any](result *marketstore.QueryResult, decode func(*marketstore.Item) (T, error)) (*Page[T], error) {
	page := &Page[T]{
		Items:  make([]T, 0, len(result.Items)),
		Cursor: result.NextCursor,
	}
	for _, item := range result.Items {
		entity, err := decode(item)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, entity)
	}
	return page, nil
}
