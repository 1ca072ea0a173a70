package voyage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiloTracer/aiagents/ai"
)

func testConfig(host string) *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(ai.ProviderVoyage),
		ai.WithHost(host),
		ai.WithAPIKey("test-key"),
		ai.WithModel("voyage-3"),
		ai.WithDimension(4),
	)
}

func TestEmbedTexts(t *testing.T) {
	var gotAuth string
	var gotReq embedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		// Out-of-order response; the client must reassemble by index.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0.5,0.6,0.7,0.8],"index":1},
			{"embedding":[0.1,0.2,0.3,0.4],"index":0}
		]}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "voyage-3", gotReq.Model)
	assert.Equal(t, []string{"first", "second"}, gotReq.Input)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vectors[0])
	assert.Equal(t, []float32{0.5, 0.6, 0.7, 0.8}, vectors[1])
}

func TestEmbedTextSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2,3,4],"index":0}]}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)

	vector, err := embedder.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, vector)
}

func TestEmbedTextsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestEmbedTextsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2,3,4],"index":0}]}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestEmbedTextsEmptyInput(t *testing.T) {
	embedder, err := NewEmbedder(testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestNewEmbedderRequiresAPIKey(t *testing.T) {
	cfg := ai.NewConfig(
		ai.WithProvider(ai.ProviderVoyage),
		ai.WithModel("voyage-3"),
	)
	_, err := NewEmbedder(cfg)
	assert.Error(t, err)
}
