// Package vector provides an exact-search vector index adapter.
//
// Vectors are L2-normalised on insert so that inner-product search
// behaves as cosine similarity. The index persists as a binary vector
// file plus a sidecar JSON metadata file (dimension, id map, next-id
// counter) that must be loaded together.
//
// Search is a full scan: exact nearest-neighbour results at the scale
// this system targets. Approximate or sharded indexing is out of scope.
package vector
