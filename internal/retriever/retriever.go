// Package retriever provides vector-similarity document retrieval for the
// answer agent's search tool.
package retriever

import "context"

// Retriever finds documentation relevant to a query. Implementations return
// the raw serialized result set; the agent passes it to the model verbatim.
type Retriever interface {
	Search(ctx context.Context, query string) (string, error)
}
