// Package cache stores synthesis results in a two-level cache: an in-memory
// LRU (L1) in front of a zstd-compressed disk cache (L2) that survives
// restarts. Keys are blake3 digests of the request.
package cache
