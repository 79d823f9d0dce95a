package marketstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Batch size ceilings imposed by the backend API.
const (
	MaxBatchGetSize   = 100
	MaxBatchWriteSize = 25
)

// Batcher executes multi-item reads and writes by splitting them into
// backend-sized windows issued sequentially. Windows are independent
// calls: a failure partway through leaves earlier windows applied, and
// nothing is rolled back. Callers needing all-or-nothing semantics must
// build it above this layer.
type Batcher struct {
	store *Store
}

// NewBatcher returns a Batcher over the given store.
func NewBatcher(store *Store) *Batcher {
	return &Batcher{store: store}
}

// BatchGet reads the items at keys, in windows of up to MaxBatchGetSize.
// Results come back in input-key order; missing keys are omitted rather
// than reported as errors. If the backend leaves keys unprocessed the
// call fails with a BatchError wrapping ErrUnprocessed; partial results
// are discarded.
func (b *Batcher) BatchGet(ctx context.Context, keys []Key) ([]*Item, error) {
	found := make(map[Key]*Item, len(keys))
	for window := 0; window*MaxBatchGetSize < len(keys); window++ {
		start := window * MaxBatchGetSize
		end := min(start+MaxBatchGetSize, len(keys))

		chunk := make([]AttributeMap, 0, end-start)
		for _, key := range keys[start:end] {
			chunk = append(chunk, key.attributes())
		}
		out, err := b.store.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				b.store.table: {Keys: chunk},
			},
		})
		if err != nil {
			return nil, &BatchError{Op: "get", Window: window, Applied: window, Err: translateError(err)}
		}
		if len(out.UnprocessedKeys) > 0 {
			err := fmt.Errorf("%w: %d keys in window", ErrUnprocessed, len(out.UnprocessedKeys[b.store.table].Keys))
			return nil, &BatchError{Op: "get", Window: window, Applied: window, Err: err}
		}
		for _, raw := range out.Responses[b.store.table] {
			item, err := unmarshalItem(raw)
			if err != nil {
				return nil, err
			}
			found[item.Key] = item
		}
	}

	items := make([]*Item, 0, len(found))
	for _, key := range keys {
		if item, ok := found[key]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// BatchWrite stores the items, in windows of up to MaxBatchWriteSize.
// Each window is a separate call; on failure, windows already written
// stay written and the returned BatchError reports how many. Zero
// timestamps are stamped before writing.
func (b *Batcher) BatchWrite(ctx context.Context, items []*Item) error {
	for window := 0; window*MaxBatchWriteSize < len(items); window++ {
		start := window * MaxBatchWriteSize
		end := min(start+MaxBatchWriteSize, len(items))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			b.store.stamp(item)
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: marshalItem(item)},
			})
		}
		out, err := b.store.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				b.store.table: requests,
			},
		})
		if err != nil {
			return &BatchError{Op: "write", Window: window, Applied: window, Err: translateError(err)}
		}
		if len(out.UnprocessedItems) > 0 {
			err := fmt.Errorf("%w: %d writes in window", ErrUnprocessed, len(out.UnprocessedItems[b.store.table]))
			return &BatchError{Op: "write", Window: window, Applied: window, Err: err}
		}
	}
	return nil
}

// BatchDelete removes the items at keys, in windows of up to
// MaxBatchWriteSize, with the same partial-failure semantics as
// BatchWrite.
func (b *Batcher) BatchDelete(ctx context.Context, keys []Key) error {
	for window := 0; window*MaxBatchWriteSize < len(keys); window++ {
		start := window * MaxBatchWriteSize
		end := min(start+MaxBatchWriteSize, len(keys))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key.attributes()},
			})
		}
		out, err := b.store.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				b.store.table: requests,
			},
		})
		if err != nil {
			return &BatchError{Op: "write", Window: window, Applied: window, Err: translateError(err)}
		}
		if len(out.UnprocessedItems) > 0 {
			err := fmt.Errorf("%w: %d deletes in window", ErrUnprocessed, len(out.UnprocessedItems[b.store.table]))
			return &BatchError{Op: "write", Window: window, Applied: window, Err: err}
		}
	}
	return nil
}
