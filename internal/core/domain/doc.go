// Package domain defines the core business entities for chartdex.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded span of clinical text plus identifying metadata,
//     the unit of indexing and retrieval
//   - RetrievalCandidate: A scored chunk produced by a retrieval query
//   - IndexingResult: The per-batch report returned by the indexing pipeline
//   - ChunkFilter: AND-composed metadata criteria for narrowing lookups
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
