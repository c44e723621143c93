package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/pkg/metrics"
)

// ChromaRetriever queries a Chroma vector database over its HTTP API.
type ChromaRetriever struct {
	baseURL    string
	collection string
	results    int
	client     *http.Client
}

// NewChromaRetriever creates a retriever against the given Chroma server and
// collection.
func NewChromaRetriever(baseURL, collection string, resultCount int) *ChromaRetriever {
	return &ChromaRetriever{
		baseURL:    baseURL,
		collection: collection,
		results:    resultCount,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type queryRequest struct {
	QueryTexts []string `json:"query_texts"`
	NResults   int      `json:"n_results"`
}

// Search runs a similarity query and returns the raw JSON result set.
func (r *ChromaRetriever) Search(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(queryRequest{
		QueryTexts: []string{query},
		NResults:   r.results,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/query", r.baseURL, r.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("retrieval query failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to read retrieval response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RetrievalsTotal.WithLabelValues("not_found").Inc()
		return "", &apperr.CollectionNotFoundError{Collection: r.collection}
	case resp.StatusCode != http.StatusOK:
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("retrieval query returned status %d", resp.StatusCode)
	}

	metrics.RetrievalsTotal.WithLabelValues("ok").Inc()
	return string(data), nil
}
