// Package store persists users, posts and likes.
//
// Two implementations share the [Store] interface: [Memory], used by tests
// and single-process deployments, and [Postgres], backed by sqlx and lib/pq
// with the schema in migrations/ applied by [Migrate].
//
// User names and emails are stored lowercased and are unique. The feed
// lists top-level posts only and pages with an opaque keyset cursor.
package store
