package aiagents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiloTracer/aiagents/ai/mock"
	"github.com/PiloTracer/aiagents/core"
)

func stubQdrant(t *testing.T) string {
	t.Helper()
	created := make(map[string]int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/collections/")
		switch {
		case r.Method == http.MethodGet:
			if _, ok := created[name]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":8,"distance":"Cosine"}}}}}`))
		case r.Method == http.MethodPut && strings.HasSuffix(name, "/points"):
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			var req struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			created[name] = req.Vectors.Size
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Ledger.Path = t.TempDir()
	cfg.Qdrant.URL = stubQdrant(t)
	cfg.Embedding.Dimension = 8
	cfg.Source.AllowedExtensions = []string{".txt"}

	service, err := NewService(cfg, WithEmbedder(mock.NewEmbedder(8)), WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })
	return service
}

func TestServiceIngestAndListJobs(t *testing.T) {
	service := newTestService(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"),
		[]byte("A note with enough text to make at least one chunk."), 0o600))

	results, err := service.Ingest(context.Background(), IngestRequest{
		Locations: []core.Location{{URI: dir, AreaSlug: "docs", AgentSlug: "agent"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.JobSucceeded, results[0].Job.Status)
	require.Len(t, results[0].Artifacts, 1)
	assert.Equal(t, core.ArtifactCompleted, results[0].Artifacts[0].Status)

	jobs, err := service.ListJobs(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, results[0].Job.Id, jobs[0].Id)

	job, err := service.GetJob(context.Background(), results[0].Job.Id.String())
	require.NoError(t, err)
	assert.Equal(t, core.JobSucceeded, job.Status)

	artifacts, err := service.ArtifactsForJob(context.Background(), results[0].Job.Id.String())
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestServiceIngestRequiresLocations(t *testing.T) {
	service := newTestService(t)

	_, err := service.Ingest(context.Background(), IngestRequest{})
	assert.ErrorIs(t, err, ErrNoLocations)
	assert.ErrorIs(t, service.IngestAsync(IngestRequest{}), ErrNoLocations)
}

func TestServiceIngestAsync(t *testing.T) {
	service := newTestService(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"),
		[]byte("Async ingestion writes the same ledger rows."), 0o600))

	require.NoError(t, service.IngestAsync(IngestRequest{
		Locations: []core.Location{{URI: dir, AreaSlug: "docs", AgentSlug: "agent"}},
	}))

	deadline := time.Now().Add(5 * time.Second)
	for {
		jobs, err := service.ListJobs(context.Background(), "docs", 0)
		require.NoError(t, err)
		if len(jobs) == 1 && jobs[0].Status.Terminal() {
			assert.Equal(t, core.JobSucceeded, jobs[0].Status)
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("async job did not reach a terminal state, jobs: %+v", jobs)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServiceGetJobInvalidId(t *testing.T) {
	service := newTestService(t)

	_, err := service.GetJob(context.Background(), "not-a-uuid")
	assert.Error(t, err)
}

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimension)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunk_size = 500

[embedding]
provider = "voyage"
api_key = "vk"
model = "voyage-3"
dimension = 1024

[qdrant]
url = "http://qdrant.internal:6333"
`), 0o600))

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap) // default survives
	assert.Equal(t, "voyage", cfg.Embedding.Provider)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
	assert.Equal(t, "http://qdrant.internal:6333", cfg.Qdrant.URL)

	aiCfg := cfg.EmbeddingAIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, 1024, aiCfg.Dimension)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.toml")
	assert.Error(t, err)
}
