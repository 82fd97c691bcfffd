// Package source defines where collections and their points come from.
//
// Source is the read contract consumed by the search core. Store adds the
// mutating operations implemented by every backend:
//
//   - memory: in-process maps, for tests and embedding
//   - sqlite: modernc.org/sqlite, pure Go
//   - postgres: pgx through database/sql
//   - badger: embedded key-value store with MessagePack records
//
// Stores do not notify caches by themselves. Wrap a store with
// WithInvalidation to invalidate cached indexes after every mutation.
package source
