package marketstore

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Kind identifies the logical entity type stored in an item.
type Kind string

const (
	KindUser          Kind = "USER"
	KindStartup       Kind = "STARTUP"
	KindStartupRole   Kind = "STARTUP_ROLE"
	KindApplication   Kind = "APPLICATION"
	KindAccessRequest Kind = "ACCESS_REQUEST"
	KindConversation  Kind = "CONVERSATION"
	KindMessage       Kind = "MESSAGE"
	KindSubscription  Kind = "SUBSCRIPTION"
	KindNotification  Kind = "NOTIFICATION"
	KindAuditLog      Kind = "AUDIT_LOG"
)

// AttributeMap is an alias for the dynamodb attribute value map.
type AttributeMap = map[string]types.AttributeValue

// Attribute names shared by every item in the table.
const (
	AttributeNamePartition       = "PK"
	AttributeNameSort            = "SK"
	AttributeNameKind            = "entityType"
	AttributeNameCreated         = "createdAt"
	AttributeNameUpdated         = "updatedAt"
	AttributeNameIndex1Partition = "GSI1PK"
	AttributeNameIndex1Sort      = "GSI1SK"
	AttributeNameIndex2Partition = "GSI2PK"
	AttributeNameIndex2Sort      = "GSI2SK"
	AttributeNameEmail           = "email"
)

// SecondaryIndex names a global secondary index and the item attributes
// it projects as keys. An index with an empty SortAttr is partition-only.
type SecondaryIndex struct {
	Name          string
	PartitionAttr string
	SortAttr      string
}

// The four indexes of the marketplace table. IndexGeneric1 and
// IndexGeneric2 are sparse and repurposed per entity kind; IndexByKind
// covers every item; IndexByEmail only contains items carrying an email
// attribute.
var (
	IndexGeneric1 = SecondaryIndex{Name: "GSI1", PartitionAttr: AttributeNameIndex1Partition, SortAttr: AttributeNameIndex1Sort}
	IndexGeneric2 = SecondaryIndex{Name: "GSI2", PartitionAttr: AttributeNameIndex2Partition, SortAttr: AttributeNameIndex2Sort}
	IndexByKind   = SecondaryIndex{Name: "GSI3", PartitionAttr: AttributeNameKind, SortAttr: AttributeNameCreated}
	IndexByEmail  = SecondaryIndex{Name: "GSI4", PartitionAttr: AttributeNameEmail}
)

// SecondaryIndexes lists every index of the table, for consumers that
// need to resolve an index by name (e.g. test fakes).
var SecondaryIndexes = []SecondaryIndex{IndexGeneric1, IndexGeneric2, IndexByKind, IndexByEmail}

// TimeFormat is the storage format for timestamps: millisecond-precision
// UTC. The format sorts lexicographically, which the key scheme relies on
// wherever a timestamp is embedded in a sort key.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in the table's timestamp format.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeFormat) }

// ParseTime parses a timestamp previously produced by FormatTime.
func ParseTime(s string) (time.Time, error) { return time.Parse(TimeFormat, s) }

// Clock is a function type that returns the current time for dependency injection.
type Clock func() time.Time

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time { return time.Now().UTC() }

// Key is the composite primary key identifying an item's position in the
// table. Partition groups related items; Sort orders and disambiguates
// within the group.
type Key struct {
	Partition string
	Sort      string
}

func (k Key) attributes() AttributeMap {
	return AttributeMap{
		AttributeNamePartition: &types.AttributeValueMemberS{Value: k.Partition},
		AttributeNameSort:      &types.AttributeValueMemberS{Value: k.Sort},
	}
}

// IndexKey is a secondary-index key projection attached to an item. A nil
// *IndexKey means the item does not participate in that index (sparse
// indexing).
type IndexKey struct {
	Partition string
	Sort      string
}

// Item is the atomic unit of storage. Attributes holds the entity-specific
// payload; the envelope fields are flattened into reserved attribute names
// when the item is written.
type Item struct {
	Key        Key
	Kind       Kind
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Index1     *IndexKey
	Index2     *IndexKey
	Attributes AttributeMap
}

func reservedAttribute(name string) bool {
	switch name {
	case AttributeNamePartition, AttributeNameSort, AttributeNameKind,
		AttributeNameCreated, AttributeNameUpdated,
		AttributeNameIndex1Partition, AttributeNameIndex1Sort,
		AttributeNameIndex2Partition, AttributeNameIndex2Sort:
		return true
	}
	return false
}

// marshalItem flattens an Item into the raw attribute map stored in the
// table. Envelope fields win over any payload attribute using a reserved
// name.
func marshalItem(item *Item) AttributeMap {
	raw := make(AttributeMap, len(item.Attributes)+9)
	for name, value := range item.Attributes {
		if !reservedAttribute(name) {
			raw[name] = value
		}
	}
	raw[AttributeNamePartition] = &types.AttributeValueMemberS{Value: item.Key.Partition}
	raw[AttributeNameSort] = &types.AttributeValueMemberS{Value: item.Key.Sort}
	raw[AttributeNameKind] = &types.AttributeValueMemberS{Value: string(item.Kind)}
	raw[AttributeNameCreated] = &types.AttributeValueMemberS{Value: FormatTime(item.CreatedAt)}
	raw[AttributeNameUpdated] = &types.AttributeValueMemberS{Value: FormatTime(item.UpdatedAt)}
	if item.Index1 != nil {
		raw[AttributeNameIndex1Partition] = &types.AttributeValueMemberS{Value: item.Index1.Partition}
		raw[AttributeNameIndex1Sort] = &types.AttributeValueMemberS{Value: item.Index1.Sort}
	}
	if item.Index2 != nil {
		raw[AttributeNameIndex2Partition] = &types.AttributeValueMemberS{Value: item.Index2.Partition}
		raw[AttributeNameIndex2Sort] = &types.AttributeValueMemberS{Value: item.Index2.Sort}
	}
	return raw
}

func stringAttribute(raw AttributeMap, name string) (string, bool) {
	if v, ok := raw[name].(*types.AttributeValueMemberS); ok {
		return v.Value, true
	}
	return "", false
}

// unmarshalItem reconstructs an Item from a raw attribute map. Reserved
// envelope attributes are stripped from the payload.
func unmarshalItem(raw AttributeMap) (*Item, error) {
	partition, ok := stringAttribute(raw, AttributeNamePartition)
	if !ok {
		return nil, fmt.Errorf("item missing %s attribute", AttributeNamePartition)
	}
	sort, ok := stringAttribute(raw, AttributeNameSort)
	if !ok {
		return nil, fmt.Errorf("item missing %s attribute", AttributeNameSort)
	}

	item := &Item{
		Key:        Key{Partition: partition, Sort: sort},
		Attributes: make(AttributeMap, len(raw)),
	}
	if kind, ok := stringAttribute(raw, AttributeNameKind); ok {
		item.Kind = Kind(kind)
	}
	if created, ok := stringAttribute(raw, AttributeNameCreated); ok {
		t, err := ParseTime(created)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", AttributeNameCreated, err)
		}
		item.CreatedAt = t
	}
	if updated, ok := stringAttribute(raw, AttributeNameUpdated); ok {
		t, err := ParseTime(updated)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", AttributeNameUpdated, err)
		}
		item.UpdatedAt = t
	}
	if pk, ok := stringAttribute(raw, AttributeNameIndex1Partition); ok {
		sk, _ := stringAttribute(raw, AttributeNameIndex1Sort)
		item.Index1 = &IndexKey{Partition: pk, Sort: sk}
	}
	if pk, ok := stringAttribute(raw, AttributeNameIndex2Partition); ok {
		sk, _ := stringAttribute(raw, AttributeNameIndex2Sort)
		item.Index2 = &IndexKey{Partition: pk, Sort: sk}
	}
	for name, value := range raw {
		if !reservedAttribute(name) {
			item.Attributes[name] = value
		}
	}
	return item, nil
}

// MarshalAttributes converts a payload struct into an attribute map using
// its dynamodbav tags.
func MarshalAttributes(payload any) (AttributeMap, error) {
	return attributevalue.MarshalMap(payload)
}

// UnmarshalAttributes decodes an attribute map into a payload struct.
func UnmarshalAttributes(attrs AttributeMap, out any) error {
	return attributevalue.UnmarshalMap(attrs, out)
}
