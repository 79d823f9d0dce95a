package marketstore

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Error taxonomy. Absence of an item is not in it: Get returns (nil, nil)
// for a missing key, and Delete on a missing key succeeds.
var (
	// ErrPreconditionFailed reports that an update's condition did not
	// match current state. The caller decides whether to retry, report a
	// conflict, or ignore.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrThrottled reports backend throttling. The store never retries
	// internally; backoff is the caller's responsibility.
	ErrThrottled = errors.New("store throttled")

	// ErrStoreUnavailable reports any other backend failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidCursor reports a malformed or tampered pagination token.
	ErrInvalidCursor = errors.New("invalid pagination cursor")

	// ErrUnprocessed reports that the backend accepted a batch call but
	// left some requests unprocessed.
	ErrUnprocessed = errors.New("batch requests left unprocessed")
)

// translateError maps a backend failure onto the package sentinels while
// keeping the original error in the chain for inspection.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
	}
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	}
	var limit *types.RequestLimitExceeded
	if errors.As(err, &limit) {
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	}
	var api smithy.APIError
	if errors.As(err, &api) && api.ErrorCode() == "ThrottlingException" {
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// BatchError reports a batch operation that failed partway through its
// windows. Windows already applied are not rolled back; the operation is
// at-least-once, not atomic.
type BatchError struct {
	Op      string // "get" or "write"
	Window  int    // zero-based index of the failing window
	Applied int    // windows fully applied before the failure
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s: window %d failed after %d applied: %v", e.Op, e.Window, e.Applied, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
