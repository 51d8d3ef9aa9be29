// Package cache maps coordinates to files in the local artifact cache.
//
// The primary root is laid out by this tool's own pattern. An optional
// secondary root, typically a pre-existing ~/.m2 repository, is consulted on a
// primary miss; a hit there is copied into the primary root so later lookups
// are primary hits. Copies and downloads are written through a temporary file
// and an atomic rename, and concurrent lookups of the same target path share
// one copy.
//
// Next to each artifact the cache can hold a solution record: the solved form
// of the artifact's descriptor, so it does not have to be fetched, merged and
// substituted again.
package cache
