package marketstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PartitionQuery lists items within one main-table partition, optionally
// narrowed to a sort-key prefix. Results come back in sort-key order.
type PartitionQuery struct {
	// Partition is the exact partition key to read. Required.
	Partition string
	// SortPrefix narrows results to sort keys beginning with this prefix.
	// Empty means the whole partition.
	SortPrefix string
	// Limit caps the page size. Zero means the backend default.
	Limit int
	// Descending reverses sort-key order.
	Descending bool
	// Cursor resumes a previous page. Empty starts from the beginning.
	Cursor string
	// Filter discards non-matching items after the key read. Filtered
	// pages can come back short, or empty, while more data remains; only
	// an empty NextCursor ends the listing.
	Filter expression.ConditionBuilder
}

// IndexQuery lists items through a secondary index. Index reads are
// eventually consistent: a projection update may briefly not be visible.
type IndexQuery struct {
	// Index selects which secondary index to read. Required.
	Index SecondaryIndex
	// Partition is the exact index partition value to read. Required.
	Partition string
	// SortPrefix narrows results by index sort key. Ignored for
	// partition-only indexes.
	SortPrefix string
	Limit      int
	Descending bool
	Cursor     string
	Filter     expression.ConditionBuilder
}

// QueryResult is one page of items plus the cursor for the next page.
// An empty NextCursor means the listing is exhausted.
type QueryResult struct {
	Items      []*Item
	NextCursor string
}

// Query executes a main-table partition query.
func (s *Store) Query(ctx context.Context, q PartitionQuery) (*QueryResult, error) {
	names := map[string]string{"#pk": AttributeNamePartition}
	values := AttributeMap{":pk": &types.AttributeValueMemberS{Value: q.Partition}}
	keyCondition := "#pk = :pk"
	if q.SortPrefix != "" {
		names["#sk"] = AttributeNameSort
		values[":skPrefix"] = &types.AttributeValueMemberS{Value: q.SortPrefix}
		keyCondition += " AND begins_with(#sk, :skPrefix)"
	}
	return s.runQuery(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, q.Limit, q.Descending, q.Cursor, q.Filter)
}

// QueryIndex executes a secondary-index query.
func (s *Store) QueryIndex(ctx context.Context, q IndexQuery) (*QueryResult, error) {
	if q.Index.Name == "" {
		return nil, fmt.Errorf("index query requires an index")
	}
	names := map[string]string{"#pk": q.Index.PartitionAttr}
	values := AttributeMap{":pk": &types.AttributeValueMemberS{Value: q.Partition}}
	keyCondition := "#pk = :pk"
	if q.SortPrefix != "" && q.Index.SortAttr != "" {
		names["#sk"] = q.Index.SortAttr
		values[":skPrefix"] = &types.AttributeValueMemberS{Value: q.SortPrefix}
		keyCondition += " AND begins_with(#sk, :skPrefix)"
	}
	return s.runQuery(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(q.Index.Name),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, q.Limit, q.Descending, q.Cursor, q.Filter)
}

func (s *Store) runQuery(ctx context.Context, input *dynamodb.QueryInput, limit int, descending bool, cursor string, filter expression.ConditionBuilder) (*QueryResult, error) {
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	if descending {
		input.ScanIndexForward = aws.Bool(false)
	}
	startKey, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	input.ExclusiveStartKey = startKey

	if filter.IsSet() {
		expr, err := expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		// Builder aliases are numeric (#0, :0) and cannot collide with the
		// key-condition aliases above.
		for alias, name := range expr.Names() {
			input.ExpressionAttributeNames[alias] = name
		}
		for placeholder, value := range expr.Values() {
			input.ExpressionAttributeValues[placeholder] = value
		}
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, translateError(err)
	}

	result := &QueryResult{Items: make([]*Item, 0, len(out.Items))}
	for _, raw := range out.Items {
		item, err := unmarshalItem(raw)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, item)
	}
	result.NextCursor, err = EncodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}
	return result, nil
}
