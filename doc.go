// Package marketstore is the shared data-access layer for the CollabHub
// marketplace backend. It multiplexes every entity kind the product knows
// about (users, startups, roles, applications, access requests,
// conversations, messages, subscriptions, notifications, audit logs) onto
// a single DynamoDB table using a composite partition/sort key scheme and
// up to four secondary indexes.
//
// The package is organized around five small pieces:
//
//   - Key builders (keys.go): pure functions mapping an entity kind and
//     identifier to physical key strings, and entity attributes to sparse
//     secondary-index projections. Keys are never assembled by hand at
//     call sites.
//   - Store: CRUD primitives against the table. Get, Put, Update, Add,
//     Delete, QueryByPartition and QueryByIndex, all parameterized by
//     keys from the builders. Range queries are prefix-only by design;
//     compound attributes are concatenated into index keys instead of
//     using comparison operators.
//   - Cursors (pagination.go): opaque continuation tokens that encode the
//     last evaluated key of a query. They round-trip exactly and are not
//     meant to be constructed by callers.
//   - Batcher: splits arbitrarily sized get/write requests into the
//     backend's per-call windows (100 reads, 25 writes) and issues them
//     sequentially. Batches are not atomic across windows; a failure
//     leaves earlier windows committed and is reported as a *BatchError.
//   - Denormalizer: keeps derived copies of a fact under alternate keys
//     (one conversation record per participant) and embedded counters on
//     parent records up to date alongside the primary write.
//
// There is no package-level client. Construct a Store explicitly with New
// or NewFromConfig and pass it to callers; the DynamoDBClient interface
// accepts test doubles such as those in the marketmock package.
//
// # Consistency model
//
// Operations against a single key are linearizable at the backend.
// Secondary-index reads are eventually consistent with the base table.
// Logical operations that touch several items (submit application, bump
// the role's applicant counter, append an audit entry) are sequences of
// independent writes: a crash between them leaves a well-defined but
// inconsistent intermediate state, and no saga or compensation mechanism
// exists here. Counters use an atomic ADD so concurrent increments never
// lose updates; all other updates are blind last-write-wins unless the
// caller attaches a precondition.
package marketstore
