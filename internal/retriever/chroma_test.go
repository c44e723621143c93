package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleszr/skyegpt/internal/apperr"
)

func TestChromaSearch(t *testing.T) {
	var gotPath string
	var gotBody queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documents":[["doc one","doc two"]]}`))
	}))
	defer server.Close()

	r := NewChromaRetriever(server.URL, "documentation", 10)
	result, err := r.Search(context.Background(), "how to export")

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/collections/documentation/query", gotPath)
	assert.Equal(t, []string{"how to export"}, gotBody.QueryTexts)
	assert.Equal(t, 10, gotBody.NResults)
	assert.JSONEq(t, `{"documents":[["doc one","doc two"]]}`, result)
}

func TestChromaSearchMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := NewChromaRetriever(server.URL, "missing", 10)
	_, err := r.Search(context.Background(), "q")

	var notFound *apperr.CollectionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Collection)
}

func TestChromaSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewChromaRetriever(server.URL, "documentation", 10)
	_, err := r.Search(context.Background(), "q")

	require.Error(t, err)
	assert.ErrorContains(t, err, "status 500")
}
