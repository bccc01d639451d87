// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic. Task persistence is defined next to the
// task model in package task; this package holds the shared DBTX and
// transaction helpers plus the ecosystem repositories.
package store
