package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiloTracer/aiagents/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestJob() *core.IngestionJob {
	return &core.IngestionJob{
		Id:        uuid.New(),
		AreaSlug:  "engineering",
		AgentSlug: "support-bot",
		SourceURI: "/data/docs",
	}
}

func TestCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))

	got, err := store.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, job.Id, got.Id)
	assert.Equal(t, core.JobPending, got.Status)
	assert.Equal(t, "engineering", got.AreaSlug)
	assert.Equal(t, "/data/docs", got.SourceURI)
	assert.Nil(t, got.TokenSummary)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetJobNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobStatusTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, store.MarkJobStatus(ctx, job.Id, core.JobRunning, ""))
	require.NoError(t, store.MarkJobStatus(ctx, job.Id, core.JobSucceeded, ""))

	// Terminal jobs never transition again.
	err := store.MarkJobStatus(ctx, job.Id, core.JobFailed, "late failure")
	assert.ErrorIs(t, err, ErrTerminalJob)

	got, err := store.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobSucceeded, got.Status)
}

func TestJobProgressAndTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.SetJobTotals(ctx, job.Id, 3))
	require.NoError(t, store.IncrementJobProgress(ctx, job.Id))
	require.NoError(t, store.IncrementJobProgress(ctx, job.Id))

	got, err := store.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalArtifacts)
	assert.Equal(t, 2, got.ProcessedArtifacts)
}

func TestJobTokenSummaryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))

	summary := &core.TokenSummary{
		TotalTokens:    120,
		ValidTokens:    118,
		InvalidTokens:  2,
		DroppedChunks:  1,
		FallbackChunks: []int{4},
		Samples: []core.TokenSample{
			{ChunkIndex: 0, TokenCount: 40, SampleTokens: []int{1, 2, 3}, SampleText: "hello"},
		},
	}
	require.NoError(t, store.SetJobTokenSummary(ctx, job.Id, summary))

	got, err := store.GetJob(ctx, job.Id)
	require.NoError(t, err)
	require.NotNil(t, got.TokenSummary)
	assert.Equal(t, 120, got.TokenSummary.TotalTokens)
	assert.Equal(t, got.TokenSummary.TotalTokens,
		got.TokenSummary.ValidTokens+got.TokenSummary.InvalidTokens)
	assert.Equal(t, []int{4}, got.TokenSummary.FallbackChunks)
	require.Len(t, got.TokenSummary.Samples, 1)
	assert.Equal(t, "hello", got.TokenSummary.Samples[0].SampleText)
}

func TestListJobsFilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newTestJob()
	require.NoError(t, store.CreateJob(ctx, first))

	second := newTestJob()
	second.AreaSlug = "sales"
	require.NoError(t, store.CreateJob(ctx, second))

	all, err := store.ListJobs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	engineering, err := store.ListJobs(ctx, "engineering", 0)
	require.NoError(t, err)
	require.Len(t, engineering, 1)
	assert.Equal(t, first.Id, engineering[0].Id)

	limited, err := store.ListJobs(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestArtifactLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))

	artifact := &core.Artifact{
		Id:          uuid.New(),
		JobId:       job.Id,
		AreaSlug:    job.AreaSlug,
		AgentSlug:   job.AgentSlug,
		SourcePath:  "/data/docs/guide.pdf",
		SourceHash:  "abc123",
		ContentType: "application/pdf",
	}
	require.NoError(t, store.CreateArtifact(ctx, artifact))

	require.NoError(t, store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactCompleted,
		ArtifactUpdate{Extractor: "pdf", ChunkCount: 7}))

	artifacts, err := store.ListArtifactsForJob(ctx, job.Id)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, core.ArtifactCompleted, artifacts[0].Status)
	assert.Equal(t, "pdf", artifacts[0].Extractor)
	assert.Equal(t, 7, artifacts[0].ChunkCount)
}

func TestMarkArtifactStatusKeepsFieldsWhenUnset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))

	artifact := &core.Artifact{
		Id: uuid.New(), JobId: job.Id,
		AreaSlug: job.AreaSlug, AgentSlug: job.AgentSlug,
		SourcePath: "/data/a.txt", SourceHash: "h1",
	}
	require.NoError(t, store.CreateArtifact(ctx, artifact))
	require.NoError(t, store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactCompleted,
		ArtifactUpdate{Extractor: "plaintext", ChunkCount: 3}))

	// Empty extractor and negative chunk count leave stored values alone.
	require.NoError(t, store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactFailed,
		ArtifactUpdate{ChunkCount: -1, Error: "upsert failed"}))

	artifacts, err := store.ListArtifactsForJob(ctx, job.Id)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "plaintext", artifacts[0].Extractor)
	assert.Equal(t, 3, artifacts[0].ChunkCount)
	assert.Equal(t, "upsert failed", artifacts[0].Error)
}

func TestArtifactExistsByHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))

	completed := &core.Artifact{
		Id: uuid.New(), JobId: job.Id,
		AreaSlug: "engineering", AgentSlug: job.AgentSlug,
		SourcePath: "/data/a.txt", SourceHash: "samehash",
	}
	require.NoError(t, store.CreateArtifact(ctx, completed))
	require.NoError(t, store.MarkArtifactStatus(ctx, completed.Id, core.ArtifactCompleted,
		ArtifactUpdate{ChunkCount: 1}))

	failed := &core.Artifact{
		Id: uuid.New(), JobId: job.Id,
		AreaSlug: "engineering", AgentSlug: job.AgentSlug,
		SourcePath: "/data/b.txt", SourceHash: "failedhash",
	}
	require.NoError(t, store.CreateArtifact(ctx, failed))
	require.NoError(t, store.MarkArtifactStatus(ctx, failed.Id, core.ArtifactFailed,
		ArtifactUpdate{ChunkCount: -1, Error: "boom"}))

	exists, err := store.ArtifactExistsByHash(ctx, "engineering", "samehash")
	require.NoError(t, err)
	assert.True(t, exists)

	// Same hash in a different area is not a duplicate.
	exists, err = store.ArtifactExistsByHash(ctx, "sales", "samehash")
	require.NoError(t, err)
	assert.False(t, exists)

	// Failed artifacts count too; bypassing them takes force_reprocess.
	exists, err = store.ArtifactExistsByHash(ctx, "engineering", "failedhash")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestChunkPersistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.CreateJob(ctx, job))

	artifact := &core.Artifact{
		Id: uuid.New(), JobId: job.Id,
		AreaSlug: job.AreaSlug, AgentSlug: job.AgentSlug,
		SourcePath: "/data/a.txt", SourceHash: "h1",
	}
	require.NoError(t, store.CreateArtifact(ctx, artifact))

	chunks := []core.Chunk{
		{
			Id: uuid.New(), ArtifactId: artifact.Id, Index: 0,
			TextPreview: "first chunk", TokenCount: 12, PointId: uuid.NewString(),
			Payload: map[string]any{"area": "engineering", "chunk_index": float64(0)},
		},
		{
			Id: uuid.New(), ArtifactId: artifact.Id, Index: 1,
			TextPreview: "second chunk", TokenCount: 9, PointId: uuid.NewString(),
		},
	}
	require.NoError(t, store.CreateChunks(ctx, chunks))

	got, err := store.GetChunksForArtifact(ctx, artifact.Id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, "first chunk", got[0].TextPreview)
	assert.Equal(t, chunks[0].Payload, got[0].Payload)
	assert.Nil(t, got[1].Payload)
}

func TestCreateChunksEmptyIsNoOp(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.CreateChunks(context.Background(), nil))
}
