package marketmock

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/collabhub/marketstore"
)

// Memory is an in-memory single-table fake. It stores raw attribute maps
// and interprets the expression grammar marketstore emits: SET/ADD/REMOVE
// update expressions, existence and equality conditions, equality and
// begins_with key conditions, and equality filters. It is safe for
// concurrent use.
//
// Pagination follows the real backend: Limit caps items examined by key
// before filters run, and a truncated page carries a resume key.
type Memory struct {
	mu      sync.Mutex
	table   string
	indexes []marketstore.SecondaryIndex
	items   map[string]marketstore.AttributeMap
	order   []string // insertion order of keys in items
	calls   map[string]int
	fail    map[string]map[int]error
}

var _ marketstore.DynamoDBClient = (*Memory)(nil)

// NewMemory creates an empty table with the standard marketplace indexes.
func NewMemory(table string) *Memory {
	return &Memory{
		table:   table,
		indexes: marketstore.SecondaryIndexes,
		items:   make(map[string]marketstore.AttributeMap),
		calls:   make(map[string]int),
		fail:    make(map[string]map[int]error),
	}
}

// FailOnCall arranges for the nth call (1-based) of op to return err
// instead of executing. Op is the API operation name, e.g. "Query" or
// "BatchWriteItem".
func (m *Memory) FailOnCall(op string, call int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[op] == nil {
		m.fail[op] = make(map[int]error)
	}
	m.fail[op][call] = err
}

// Calls reports how many times op has been invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Len reports the number of stored items.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Raw returns a copy of the stored attribute map at the given primary key,
// or nil if absent.
func (m *Memory) Raw(partition, sortKey string) marketstore.AttributeMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[partition+"\x00"+sortKey]
	if !ok {
		return nil
	}
	return copyAttributes(raw)
}

// enter records the call and returns an injected failure, if configured.
// Callers must hold mu.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	return m.fail[op][m.calls[op]]
}

func (m *Memory) checkTable(name *string) error {
	if aws.ToString(name) != m.table {
		return fmt.Errorf("unknown table %q", aws.ToString(name))
	}
	return nil
}

func storageKey(item marketstore.AttributeMap) (string, error) {
	pk, ok := stringValue(item[marketstore.AttributeNamePartition])
	if !ok {
		return "", fmt.Errorf("item missing %s", marketstore.AttributeNamePartition)
	}
	sk, ok := stringValue(item[marketstore.AttributeNameSort])
	if !ok {
		return "", fmt.Errorf("item missing %s", marketstore.AttributeNameSort)
	}
	return pk + "\x00" + sk, nil
}

func stringValue(av types.AttributeValue) (string, bool) {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value, true
	}
	return "", false
}

func copyAttributes(raw marketstore.AttributeMap) marketstore.AttributeMap {
	out := make(marketstore.AttributeMap, len(raw))
	for name, value := range raw {
		out[name] = value
	}
	return out
}

func (m *Memory) put(raw marketstore.AttributeMap) error {
	key, err := storageKey(raw)
	if err != nil {
		return err
	}
	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = copyAttributes(raw)
	return nil
}

func (m *Memory) delete(key marketstore.AttributeMap) error {
	sk, err := storageKey(key)
	if err != nil {
		return err
	}
	if _, exists := m.items[sk]; exists {
		delete(m.items, sk)
		for i, k := range m.order {
			if k == sk {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (m *Memory) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetItem"); err != nil {
		return nil, err
	}
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}
	key, err := storageKey(params.Key)
	if err != nil {
		return nil, err
	}
	raw, ok := m.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyAttributes(raw)}, nil
}

func (m *Memory) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PutItem"); err != nil {
		return nil, err
	}
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}
	if err := m.put(params.Item); err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *Memory) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteItem"); err != nil {
		return nil, err
	}
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}
	if err := m.delete(params.Key); err != nil {
		return nil, err
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *Memory) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateItem"); err != nil {
		return nil, err
	}
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}
	key, err := storageKey(params.Key)
	if err != nil {
		return nil, err
	}
	current, exists := m.items[key]

	if expr := aws.ToString(params.ConditionExpression); expr != "" {
		ok, err := evalCondition(expr, current, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("the conditional request failed")}
		}
	}

	// Create-on-update when the key is vacant, matching the real backend.
	next := copyAttributes(params.Key)
	if exists {
		next = copyAttributes(current)
	}
	if err := applyUpdate(next, aws.ToString(params.UpdateExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	if err := m.put(next); err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *Memory) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Query"); err != nil {
		return nil, err
	}
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}

	partAttr := marketstore.AttributeNamePartition
	sortAttr := marketstore.AttributeNameSort
	if name := aws.ToString(params.IndexName); name != "" {
		found := false
		for _, idx := range m.indexes {
			if idx.Name == name {
				partAttr, sortAttr = idx.PartitionAttr, idx.SortAttr
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown index %q", name)
		}
	}

	partition, sortPrefix, err := parseKeyCondition(aws.ToString(params.KeyConditionExpression), partAttr, sortAttr, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	var matched []marketstore.AttributeMap
	for _, key := range m.order {
		raw := m.items[key]
		pk, ok := stringValue(raw[partAttr])
		if !ok || pk != partition {
			continue
		}
		if sortPrefix != "" {
			sk, ok := stringValue(raw[sortAttr])
			if !ok || !strings.HasPrefix(sk, sortPrefix) {
				continue
			}
		}
		matched = append(matched, raw)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		var si, sj string
		if sortAttr != "" {
			si, _ = stringValue(matched[i][sortAttr])
			sj, _ = stringValue(matched[j][sortAttr])
		}
		if si != sj {
			return si < sj
		}
		ki, _ := storageKey(matched[i])
		kj, _ := storageKey(matched[j])
		return ki < kj
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		resume, err := storageKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = len(matched)
		for i, raw := range matched {
			if key, _ := storageKey(raw); key == resume {
				start = i + 1
				break
			}
		}
	}
	matched = matched[start:]

	// Limit bounds the items examined by key; filters run afterwards and
	// can shrink the page further without affecting the resume key.
	var lastEvaluated marketstore.AttributeMap
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
		last := matched[len(matched)-1]
		lastEvaluated = marketstore.AttributeMap{
			marketstore.AttributeNamePartition: last[marketstore.AttributeNamePartition],
			marketstore.AttributeNameSort:      last[marketstore.AttributeNameSort],
		}
		if aws.ToString(params.IndexName) != "" {
			lastEvaluated[partAttr] = last[partAttr]
			if sortAttr != "" {
				lastEvaluated[sortAttr] = last[sortAttr]
			}
		}
	}

	out := &dynamodb.QueryOutput{LastEvaluatedKey: lastEvaluated}
	filter := aws.ToString(params.FilterExpression)
	for _, raw := range matched {
		if filter != "" {
			ok, err := evalCondition(filter, raw, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out.Items = append(out.Items, copyAttributes(raw))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (m *Memory) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("BatchGetItem"); err != nil {
		return nil, err
	}
	request, ok := params.RequestItems[m.table]
	if !ok {
		return nil, fmt.Errorf("batch get names no known table")
	}
	if len(request.Keys) > 100 {
		return nil, fmt.Errorf("batch get window too large: %d keys", len(request.Keys))
	}
	out := &dynamodb.BatchGetItemOutput{
		Responses: map[string][]marketstore.AttributeMap{},
	}
	for _, key := range request.Keys {
		sk, err := storageKey(key)
		if err != nil {
			return nil, err
		}
		if raw, exists := m.items[sk]; exists {
			out.Responses[m.table] = append(out.Responses[m.table], copyAttributes(raw))
		}
	}
	return out, nil
}

func (m *Memory) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("BatchWriteItem"); err != nil {
		return nil, err
	}
	requests, ok := params.RequestItems[m.table]
	if !ok {
		return nil, fmt.Errorf("batch write names no known table")
	}
	if len(requests) > 25 {
		return nil, fmt.Errorf("batch write window too large: %d requests", len(requests))
	}
	for _, req := range requests {
		switch {
		case req.PutRequest != nil:
			if err := m.put(req.PutRequest.Item); err != nil {
				return nil, err
			}
		case req.DeleteRequest != nil:
			if err := m.delete(req.DeleteRequest.Key); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("write request is neither put nor delete")
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// Expression evaluation. Only the grammar marketstore emits is supported;
// anything else is an error so a drifting request shape surfaces in tests.

func resolveName(alias string, names map[string]string) (string, error) {
	if !strings.HasPrefix(alias, "#") {
		return alias, nil
	}
	name, ok := names[alias]
	if !ok {
		return "", fmt.Errorf("unresolved name alias %s", alias)
	}
	return name, nil
}

func resolveValue(placeholder string, values marketstore.AttributeMap) (types.AttributeValue, error) {
	value, ok := values[placeholder]
	if !ok {
		return nil, fmt.Errorf("unresolved value placeholder %s", placeholder)
	}
	return value, nil
}

func attrEqual(a, b types.AttributeValue) bool {
	return reflect.DeepEqual(a, b)
}

func evalCondition(expr string, item marketstore.AttributeMap, names map[string]string, values marketstore.AttributeMap) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		clause = strings.TrimPrefix(clause, "(")
		clause = strings.TrimSuffix(clause, ")")
		ok, err := evalClause(clause, item, names, values)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalClause(clause string, item marketstore.AttributeMap, names map[string]string, values marketstore.AttributeMap) (bool, error) {
	switch {
	case strings.HasPrefix(clause, "attribute_exists"):
		name, err := resolveName(argument(clause), names)
		if err != nil {
			return false, err
		}
		_, exists := item[name]
		return exists, nil
	case strings.HasPrefix(clause, "attribute_not_exists"):
		name, err := resolveName(argument(clause), names)
		if err != nil {
			return false, err
		}
		_, exists := item[name]
		return !exists, nil
	}
	lhs, rhs, found := strings.Cut(clause, " = ")
	if !found {
		return false, fmt.Errorf("unsupported condition clause %q", clause)
	}
	name, err := resolveName(strings.TrimSpace(lhs), names)
	if err != nil {
		return false, err
	}
	want, err := resolveValue(strings.TrimSpace(rhs), values)
	if err != nil {
		return false, err
	}
	return attrEqual(item[name], want), nil
}

// argument extracts the single argument of a function-style clause such
// as attribute_exists(PK).
func argument(clause string) string {
	open := strings.Index(clause, "(")
	close := strings.LastIndex(clause, ")")
	if open < 0 || close < open {
		return ""
	}
	return strings.TrimSpace(clause[open+1 : close])
}

func parseKeyCondition(expr, partAttr, sortAttr string, names map[string]string, values marketstore.AttributeMap) (partition, sortPrefix string, err error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		if strings.HasPrefix(clause, "begins_with") {
			args := strings.Split(argument(clause), ",")
			if len(args) != 2 {
				return "", "", fmt.Errorf("malformed begins_with in %q", expr)
			}
			name, err := resolveName(strings.TrimSpace(args[0]), names)
			if err != nil {
				return "", "", err
			}
			if name != sortAttr {
				return "", "", fmt.Errorf("begins_with on %q, want sort attribute %q", name, sortAttr)
			}
			value, err := resolveValue(strings.TrimSpace(args[1]), values)
			if err != nil {
				return "", "", err
			}
			prefix, ok := stringValue(value)
			if !ok {
				return "", "", fmt.Errorf("begins_with value is not a string")
			}
			sortPrefix = prefix
			continue
		}
		lhs, rhs, found := strings.Cut(clause, " = ")
		if !found {
			return "", "", fmt.Errorf("unsupported key condition clause %q", clause)
		}
		name, err := resolveName(strings.TrimSpace(lhs), names)
		if err != nil {
			return "", "", err
		}
		if name != partAttr {
			return "", "", fmt.Errorf("equality on %q, want partition attribute %q", name, partAttr)
		}
		value, err := resolveValue(strings.TrimSpace(rhs), values)
		if err != nil {
			return "", "", err
		}
		p, ok := stringValue(value)
		if !ok {
			return "", "", fmt.Errorf("partition value is not a string")
		}
		partition = p
	}
	if partition == "" {
		return "", "", fmt.Errorf("key condition %q has no partition clause", expr)
	}
	return partition, sortPrefix, nil
}

// applyUpdate executes a SET/ADD/REMOVE update expression against item in
// place.
func applyUpdate(item marketstore.AttributeMap, expr string, names map[string]string, values marketstore.AttributeMap) error {
	if expr == "" {
		return fmt.Errorf("empty update expression")
	}
	for _, section := range splitSections(expr) {
		action, body, _ := strings.Cut(section, " ")
		switch action {
		case "SET":
			for _, assignment := range strings.Split(body, ", ") {
				lhs, rhs, found := strings.Cut(assignment, " = ")
				if !found {
					return fmt.Errorf("malformed SET assignment %q", assignment)
				}
				name, err := resolveName(strings.TrimSpace(lhs), names)
				if err != nil {
					return err
				}
				value, err := resolveValue(strings.TrimSpace(rhs), values)
				if err != nil {
					return err
				}
				item[name] = value
			}
		case "ADD":
			fields := strings.Fields(body)
			if len(fields) != 2 {
				return fmt.Errorf("malformed ADD section %q", body)
			}
			name, err := resolveName(fields[0], names)
			if err != nil {
				return err
			}
			value, err := resolveValue(fields[1], values)
			if err != nil {
				return err
			}
			delta, ok := value.(*types.AttributeValueMemberN)
			if !ok {
				return fmt.Errorf("ADD value for %s is not numeric", name)
			}
			current := 0
			if existing, ok := item[name].(*types.AttributeValueMemberN); ok {
				n, err := strconv.Atoi(existing.Value)
				if err != nil {
					return fmt.Errorf("attribute %s holds non-integer %q", name, existing.Value)
				}
				current = n
			}
			d, err := strconv.Atoi(delta.Value)
			if err != nil {
				return fmt.Errorf("ADD delta %q is not an integer", delta.Value)
			}
			item[name] = &types.AttributeValueMemberN{Value: strconv.Itoa(current + d)}
		case "REMOVE":
			for _, alias := range strings.Split(body, ", ") {
				name, err := resolveName(strings.TrimSpace(alias), names)
				if err != nil {
					return err
				}
				delete(item, name)
			}
		default:
			return fmt.Errorf("unsupported update action %q", action)
		}
	}
	return nil
}

// splitSections breaks an update expression into its action sections, e.g.
// "SET a = :a ADD #c :d" into ["SET a = :a", "ADD #c :d"].
func splitSections(expr string) []string {
	var sections []string
	fields := strings.Fields(expr)
	var current []string
	for _, field := range fields {
		switch field {
		case "SET", "ADD", "REMOVE", "DELETE":
			if len(current) > 0 {
				sections = append(sections, strings.Join(current, " "))
			}
			current = []string{field}
		default:
			current = append(current, field)
		}
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, " "))
	}
	return sections
}
