// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for indexing and retrieval to function:
//
//   - EmbeddingService: Generates vector embeddings (external model runtime)
//   - VectorIndex: Vector storage and nearest-neighbour search
//   - MetadataStore: Durable chunk records and filtered id lookups
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - KeywordIndex: Lexical search used only as a secondary ranking
//     signal. Retrieval correctness does not depend on it.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
