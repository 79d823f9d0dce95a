package marketstore

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func init() {
	// Register every attribute value variant a resume point can contain so
	// cursors round-trip through gob without per-call setup.
	gob.Register(&types.AttributeValueMemberB{})
	gob.Register(&types.AttributeValueMemberBOOL{})
	gob.Register(&types.AttributeValueMemberBS{})
	gob.Register(&types.AttributeValueMemberL{})
	gob.Register(&types.AttributeValueMemberM{})
	gob.Register(&types.AttributeValueMemberN{})
	gob.Register(&types.AttributeValueMemberNS{})
	gob.Register(&types.AttributeValueMemberNULL{})
	gob.Register(&types.AttributeValueMemberS{})
	gob.Register(&types.AttributeValueMemberSS{})
	gob.Register(AttributeMap{})
}

var cursorEncoding = base64.URLEncoding

// EncodeCursor packs a query resume point into an opaque token safe to
// hand to clients in URLs. An empty resume point encodes to "".
func EncodeCursor(startKey AttributeMap) (string, error) {
	if len(startKey) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(startKey); err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return cursorEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeCursor unpacks a token produced by EncodeCursor. Malformed or
// tampered tokens fail with ErrInvalidCursor; an empty token decodes to
// nil, meaning start from the beginning.
func DecodeCursor(cursor string) (AttributeMap, error) {
	if cursor == "" {
		return nil, nil
	}
	data, err := cursorEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	var startKey AttributeMap
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&startKey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	return startKey, nil
}
