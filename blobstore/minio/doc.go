// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. This package uses the
// official MinIO Go client and works with other S3-compatible systems like
// Ceph, SeaweedFS and Garage.
//
// # Basic Usage
//
//	store, err := minio.Dial(ctx, "localhost:9000", "snapshots", func(o *minio.Options) {
//	    o.AccessKey = "minioadmin"
//	    o.SecretKey = "minioadmin"
//	})
//
// Writes through Create are streamed, so large snapshots are never held
// in memory as a whole.
package minio
