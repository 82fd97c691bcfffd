// Package snapshot persists built HNSW graphs so that a restarted process
// can skip graph construction.
//
// A snapshot blob is a six byte header (magic "VSNP", format version,
// compression) followed by the gob encoded graph, compressed with zstd,
// lz4 or not at all. Blob names embed an xxhash fingerprint of the
// collection config, the ordered point ids and embeddings, and the seed.
package snapshot
