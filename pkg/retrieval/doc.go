// Package retrieval ranks stored history against a query and assembles the
// best of it into a token-bounded context block.
//
// Rank and Assemble are pure functions over in-memory candidates. Retriever
// wires them to a vector store and the embedding service, and degrades to
// recency order whenever a query vector cannot be produced.
package retrieval
