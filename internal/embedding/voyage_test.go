package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVoyageClientDefaults(t *testing.T) {
	client, err := NewVoyageClient("key", "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultVoyageModel, client.Model())
	assert.Equal(t, DefaultVoyageDimension, client.Dimension())
}

func TestNewVoyageClientRequiresKey(t *testing.T) {
	_, err := NewVoyageClient("", "", 0)
	require.Error(t, err)
}

// fakeVoyage serves indexed embeddings of the given dimension, in reverse
// order to exercise input-order restoration.
func fakeVoyage(t *testing.T, dimension int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp voyageResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dimension)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestVoyageEmbedBatchRestoresOrder(t *testing.T) {
	srv := fakeVoyage(t, 4)
	defer srv.Close()

	client, err := NewVoyageClient("test-key", "voyage-3", 4)
	require.NoError(t, err)
	client.endpoint = srv.URL

	vectors, err := client.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, vec := range vectors {
		require.Len(t, vec, 4)
		assert.Equal(t, float32(i+1), vec[0], "vector %d should be back in input order", i)
	}
}

func TestVoyageEmbedSingle(t *testing.T) {
	srv := fakeVoyage(t, 4)
	defer srv.Close()

	client, err := NewVoyageClient("test-key", "voyage-3", 4)
	require.NoError(t, err)
	client.endpoint = srv.URL

	vec, err := client.Embed(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestVoyageEmbedBatchEmpty(t *testing.T) {
	client, err := NewVoyageClient("test-key", "", 0)
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestVoyageDimensionMismatch(t *testing.T) {
	srv := fakeVoyage(t, 8)
	defer srv.Close()

	client, err := NewVoyageClient("test-key", "voyage-3", 4)
	require.NoError(t, err)
	client.endpoint = srv.URL

	_, err = client.EmbedBatch(context.Background(), []string{"alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestVoyageAPIErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"detail":"rate limited"}`)
	}))
	defer srv.Close()

	client, err := NewVoyageClient("test-key", "", 0)
	require.NoError(t, err)
	client.endpoint = srv.URL

	_, err = client.EmbedBatch(context.Background(), []string{"alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}
