package marketstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Patch names the attributes an Update merges into an existing item.
// Values are marshaled with the same rules as payload structs.
type Patch map[string]any

// Condition is a typed precondition for Update. The zero value means no
// condition.
type Condition struct {
	expr   string
	names  map[string]string
	values AttributeMap
	err    error
}

// ConditionItemExists requires the item to already exist. Updates against
// a missing key then fail with ErrPreconditionFailed instead of creating
// a partial item.
func ConditionItemExists() Condition {
	return Condition{expr: "attribute_exists(" + AttributeNamePartition + ")"}
}

// ConditionItemNotExists requires the key to be vacant.
func ConditionItemNotExists() Condition {
	return Condition{expr: "attribute_not_exists(" + AttributeNamePartition + ")"}
}

// ConditionAttributeEquals requires an attribute to hold the given value,
// e.g. that a status transition starts from the expected state.
func ConditionAttributeEquals(name string, value any) Condition {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return Condition{err: fmt.Errorf("marshal condition value for %s: %w", name, err)}
	}
	return Condition{
		expr:   "#cond = :cond",
		names:  map[string]string{"#cond": name},
		values: AttributeMap{":cond": av},
	}
}

type updateRequest struct {
	condition *Condition
	removes   []string
}

// UpdateOption customizes an Update call.
type UpdateOption func(*updateRequest)

// WithCondition attaches a precondition to the update. Without one the
// update is unconditional and blind: no read-before-write, no optimistic
// lock, last write wins.
func WithCondition(c Condition) UpdateOption {
	return func(r *updateRequest) { r.condition = &c }
}

// WithRemove deletes the named attributes as part of the update. Used to
// drop sparse index keys when an item leaves an index.
func WithRemove(names ...string) UpdateOption {
	return func(r *updateRequest) { r.removes = append(r.removes, names...) }
}

// Get retrieves the item at key. A missing item is (nil, nil), not an
// error.
func (s *Store) Get(ctx context.Context, key Key) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key.attributes(),
	})
	if err != nil {
		return nil, translateError(err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return unmarshalItem(out.Item)
}

// Put writes item unconditionally, overwriting any existing item at the
// same key. Zero timestamps are stamped with the store clock.
func (s *Store) Put(ctx context.Context, item *Item) error {
	s.stamp(item)
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      marshalItem(item),
	})
	return translateError(err)
}

func (s *Store) stamp(item *Item) {
	now := s.tick()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
}

// Update merges patch into the item at key, leaving unspecified attributes
// untouched, and always refreshes updatedAt. Updating an attribute that
// drives a secondary index is the caller's cue to include the recomputed
// index key in the same patch. Behavior against a missing key without a
// condition is the backend's create-on-update; callers must not rely on it.
func (s *Store) Update(ctx context.Context, key Key, patch Patch, opts ...UpdateOption) error {
	var req updateRequest
	for _, opt := range opts {
		opt(&req)
	}

	names := map[string]string{"#updatedAt": AttributeNameUpdated}
	values := AttributeMap{
		":updatedAt": &types.AttributeValueMemberS{Value: FormatTime(s.tick())},
	}
	sets := []string{"#updatedAt = :updatedAt"}

	// Deterministic attribute order keeps the request shape stable.
	attrs := make([]string, 0, len(patch))
	for name := range patch {
		attrs = append(attrs, name)
	}
	sort.Strings(attrs)
	for i, name := range attrs {
		alias := fmt.Sprintf("#a%d", i)
		placeholder := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(patch[name])
		if err != nil {
			return fmt.Errorf("marshal patch attribute %s: %w", name, err)
		}
		names[alias] = name
		values[placeholder] = av
		sets = append(sets, alias+" = "+placeholder)
	}

	expr := "SET " + strings.Join(sets, ", ")
	if len(req.removes) > 0 {
		aliases := make([]string, len(req.removes))
		for i, name := range req.removes {
			alias := fmt.Sprintf("#r%d", i)
			names[alias] = name
			aliases[i] = alias
		}
		expr += " REMOVE " + strings.Join(aliases, ", ")
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key.attributes(),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if req.condition != nil {
		if req.condition.err != nil {
			return req.condition.err
		}
		input.ConditionExpression = aws.String(req.condition.expr)
		for alias, name := range req.condition.names {
			names[alias] = name
		}
		for placeholder, value := range req.condition.values {
			values[placeholder] = value
		}
	}

	_, err := s.client.UpdateItem(ctx, input)
	return translateError(err)
}

// Add atomically adjusts a numeric attribute by delta using the backend's
// ADD action, and refreshes updatedAt. Concurrent adds never lose
// updates, unlike a read-then-write increment. A missing attribute counts
// as zero.
func (s *Store) Add(ctx context.Context, key Key, attribute string, delta int, opts ...UpdateOption) error {
	var req updateRequest
	for _, opt := range opts {
		opt(&req)
	}

	names := map[string]string{
		"#updatedAt": AttributeNameUpdated,
		"#ctr":       attribute,
	}
	values := AttributeMap{
		":updatedAt": &types.AttributeValueMemberS{Value: FormatTime(s.tick())},
		":delta":     &types.AttributeValueMemberN{Value: strconv.Itoa(delta)},
	}
	expr := "SET #updatedAt = :updatedAt ADD #ctr :delta"
	if len(req.removes) > 0 {
		aliases := make([]string, len(req.removes))
		for i, name := range req.removes {
			alias := fmt.Sprintf("#r%d", i)
			names[alias] = name
			aliases[i] = alias
		}
		expr += " REMOVE " + strings.Join(aliases, ", ")
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key.attributes(),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if req.condition != nil {
		if req.condition.err != nil {
			return req.condition.err
		}
		input.ConditionExpression = aws.String(req.condition.expr)
		for alias, name := range req.condition.names {
			names[alias] = name
		}
		for placeholder, value := range req.condition.values {
			values[placeholder] = value
		}
	}

	_, err := s.client.UpdateItem(ctx, input)
	return translateError(err)
}

// Delete removes the item at key. Deleting a missing item is not an error.
func (s *Store) Delete(ctx context.Context, key Key) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key.attributes(),
	})
	return translateError(err)
}
