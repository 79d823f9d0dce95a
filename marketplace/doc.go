// Package marketplace implements the startup marketplace domain on top of
// the marketstore access layer: user profiles, startups and their open
// roles, applications, investor access requests, messaging, notifications,
// subscriptions, and the audit trail.
//
// All state lives in one wide-column table. The service methods own the
// key scheme end to end: callers pass entity identifiers and get entities
// back, never raw keys or attribute maps.
package marketplace
