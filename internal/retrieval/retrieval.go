// Package retrieval talks to the vector search service that holds the
// embedded ISO 26262 corpus. The index itself is built offline; from
// this side it is an opaque nearest-neighbor search.
package retrieval

import "context"

// Passage is one retrieved chunk of standard text with its origin.
type Passage struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   string `json:"page,omitempty"`
}

// Retriever returns the k passages most similar to a query, in rank
// order. A query with no matches returns an empty slice, not an error.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}
