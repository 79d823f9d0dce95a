package marketstore

import "context"

// Denormalizer maintains redundant copies of data that the key scheme
// requires for cheap reads: fan-out projections of one authoritative item
// into other partitions, and counters embedded in parent items. All of it
// is non-atomic across items; readers of copies may briefly observe stale
// data after the authoritative item has changed.
type Denormalizer struct {
	store *Store
	batch *Batcher
}

// NewDenormalizer returns a Denormalizer over the given store.
func NewDenormalizer(store *Store) *Denormalizer {
	return &Denormalizer{store: store, batch: NewBatcher(store)}
}

// FanOut writes the authoritative item first, then the projection copies
// in batch. If the copies fail after the authoritative write, the
// authoritative item stays written; callers repair by calling Refan.
func (d *Denormalizer) FanOut(ctx context.Context, authoritative *Item, copies []*Item) error {
	if err := d.store.Put(ctx, authoritative); err != nil {
		return err
	}
	return d.Refan(ctx, copies)
}

// Refan rewrites projection copies without touching the authoritative
// item. Used when the projected attributes change, e.g. a conversation
// preview after a new message.
func (d *Denormalizer) Refan(ctx context.Context, copies []*Item) error {
	if len(copies) == 0 {
		return nil
	}
	return d.batch.BatchWrite(ctx, copies)
}

// AddToCounter atomically adjusts a counter attribute embedded in the
// item at key. The counter is advisory: it can drift from the true count
// if a dependent write succeeds and the counter update fails, and nothing
// reconciles it automatically.
func (d *Denormalizer) AddToCounter(ctx context.Context, key Key, attribute string, delta int) error {
	return d.store.Add(ctx, key, attribute, delta)
}
