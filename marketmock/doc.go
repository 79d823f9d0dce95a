// Package marketmock provides test doubles for the marketstore package.
//
// Two substitute clients are available. MockClient is an expectation mock:
// every operation is a settable function field, and unset operations fail
// the test. Memory is a stateful in-memory table that understands the
// request grammar marketstore emits, including update expressions,
// conditions, prefix key conditions, secondary indexes, and pagination.
// Use MockClient to pin down exact request shapes and error paths; use
// Memory for scenario tests that read their own writes.
//
// Seed helpers build well-formed items for each marketplace entity kind so
// tests do not hand-assemble attribute maps.
package marketmock
