// Package blobstore stores immutable named blobs. Index snapshots are
// persisted through it.
//
// # Built-in Implementations
//
//   - MemoryStore: process memory, for tests
//   - LocalStore: a directory, with atomic renames under a file lock
//   - CachingStore: an in-memory LRU in front of another Store
//   - s3.Store: Amazon S3 and compatible services
//   - minio.Store: MinIO through its native client
//
// # Custom Implementations
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error
//	    Create(ctx, name) (WritableBlob, error)
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
