package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/PiloTracer/aiagents/core"
	"github.com/PiloTracer/aiagents/extract"
	"github.com/PiloTracer/aiagents/ledger"
	"github.com/PiloTracer/aiagents/source"
	"github.com/PiloTracer/aiagents/tokens"
	"github.com/PiloTracer/aiagents/vectorstore"
)

const previewLength = 200

// Pipeline turns one Location into a terminal ingestion job. It is the
// sole owner of job and token-summary mutable state; stages below it
// return values and classified errors.
type Pipeline struct {
	registry *source.Registry
	chain    *extract.Chain
	chunker  *Chunker
	encoder  *BatchEncoder
	analyzer *tokens.Analyzer
	store    *ledger.Store
	vectors  *vectorstore.Client
	logger   *slog.Logger
}

// NewPipeline wires the pipeline stages. All dependencies are required.
func NewPipeline(
	registry *source.Registry,
	chain *extract.Chain,
	chunker *Chunker,
	encoder *BatchEncoder,
	analyzer *tokens.Analyzer,
	store *ledger.Store,
	vectors *vectorstore.Client,
) (*Pipeline, error) {
	if registry == nil || chain == nil || chunker == nil || encoder == nil ||
		analyzer == nil || store == nil || vectors == nil {
		return nil, ErrMissingDependency
	}
	return &Pipeline{
		registry: registry,
		chain:    chain,
		chunker:  chunker,
		encoder:  encoder,
		analyzer: analyzer,
		store:    store,
		vectors:  vectors,
		logger:   slog.Default().With("component", "ingestion-pipeline"),
	}, nil
}

// Result is the outcome of one location's job.
type Result struct {
	Job       *core.IngestionJob
	Artifacts []core.Artifact
}

// RunLocation processes one location to a terminal job state. The
// returned error covers infrastructure failures only (ledger
// unavailable and similar); pipeline failures land in the job's status
// and error message instead.
func (p *Pipeline) RunLocation(ctx context.Context, loc core.Location, forceReprocess bool) (*Result, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	job := &core.IngestionJob{
		Id:        uuid.New(),
		AreaSlug:  loc.AreaSlug,
		AgentSlug: loc.AgentSlug,
		SourceURI: loc.URI,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	p.logger.Info("job started",
		"job", job.Id, "area", loc.AreaSlug, "uri", loc.URI, "force", forceReprocess)

	if err := p.store.MarkJobStatus(ctx, job.Id, core.JobRunning, ""); err != nil {
		return nil, err
	}

	if err := p.runJob(ctx, job.Id, loc, forceReprocess); err != nil {
		return nil, err
	}
	return p.collect(ctx, job.Id)
}

// runJob executes discovery and the per-artifact loop, then settles the
// terminal status. It returns only infrastructure errors.
func (p *Pipeline) runJob(ctx context.Context, jobId uuid.UUID, loc core.Location, forceReprocess bool) error {
	// A dimension conflict on the existing collection is fatal for the
	// whole location before any artifact is touched.
	if err := p.vectors.EnsureCollection(ctx, loc.AreaSlug, p.encoder.Dimension()); err != nil {
		return p.failJob(ctx, jobId, err)
	}

	files, err := p.registry.Discover(ctx, loc)
	if err != nil {
		return p.failJob(ctx, jobId, err)
	}
	if err := p.store.SetJobTotals(ctx, jobId, len(files)); err != nil {
		return err
	}

	summary := &core.TokenSummary{}
	var failures []string

	for _, file := range files {
		artifactErr, err := p.processArtifact(ctx, jobId, loc, file, forceReprocess, summary)
		if err != nil {
			return err
		}
		if artifactErr == nil {
			continue
		}
		if core.IsFatal(artifactErr) {
			if err := p.store.SetJobTokenSummary(ctx, jobId, summary); err != nil {
				return err
			}
			return p.failJob(ctx, jobId, artifactErr)
		}
		failures = append(failures, fmt.Sprintf("%s: %v", file.Path, artifactErr))
	}

	if err := p.store.SetJobTokenSummary(ctx, jobId, summary); err != nil {
		return err
	}

	status := core.JobSucceeded
	message := ""
	if len(failures) > 0 {
		status = core.JobPartial
		message = strings.Join(failures, "; ")
	}
	p.logger.Info("job finished", "job", jobId, "status", status, "failures", len(failures))
	return p.store.MarkJobStatus(ctx, jobId, status, message)
}

// processArtifact runs one file through the hash, dedup, extract,
// chunk, validate, embed, upsert and persist stages. The first return
// value is the artifact's pipeline failure, if any; the second covers
// infrastructure errors that abort the run entirely.
func (p *Pipeline) processArtifact(
	ctx context.Context,
	jobId uuid.UUID,
	loc core.Location,
	file source.File,
	forceReprocess bool,
	summary *core.TokenSummary,
) (artifactErr error, err error) {
	artifact := &core.Artifact{
		Id:          uuid.New(),
		JobId:       jobId,
		AreaSlug:    loc.AreaSlug,
		AgentSlug:   loc.AgentSlug,
		SourcePath:  file.Path,
		ContentType: file.ContentType,
		Status:      core.ArtifactProcessing,
	}

	hash, hashErr := hashFile(file.Path)
	artifact.SourceHash = hash

	// The dedup lookup runs before this artifact's own row exists, so a
	// genuine prior ingest is the only possible match.
	duplicate := false
	if hashErr == nil && !forceReprocess {
		var err error
		duplicate, err = p.store.ArtifactExistsByHash(ctx, loc.AreaSlug, hash)
		if err != nil {
			return nil, err
		}
	}

	if err := p.store.CreateArtifact(ctx, artifact); err != nil {
		return nil, err
	}
	advance := func() error { return p.store.IncrementJobProgress(ctx, jobId) }

	if hashErr != nil {
		if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactFailed,
			ledger.ArtifactUpdate{ChunkCount: -1, Error: hashErr.Error()}); err != nil {
			return nil, err
		}
		return hashErr, advance()
	}

	if duplicate {
		p.logger.Debug("skipping duplicate artifact", "job", jobId, "path", file.Path)
		if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactSkippedDuplicate,
			ledger.ArtifactUpdate{ChunkCount: -1}); err != nil {
			return nil, err
		}
		return nil, advance()
	}

	text, extractor, extractErr := p.chain.Extract(ctx, file.Path)
	if extractErr != nil {
		if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactFailed,
			ledger.ArtifactUpdate{ChunkCount: -1, Error: extractErr.Error()}); err != nil {
			return nil, err
		}
		return extractErr, advance()
	}

	rawChunks, splitErr := p.chunker.Split(text)
	if splitErr != nil {
		if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactFailed,
			ledger.ArtifactUpdate{Extractor: extractor, ChunkCount: -1, Error: splitErr.Error()}); err != nil {
			return nil, err
		}
		return splitErr, advance()
	}

	// Validate before embedding so dropped chunks never reach the
	// provider, then keep only the survivors.
	var surviving []tokens.Report
	for index, chunkText := range rawChunks {
		report := p.analyzer.Analyze(chunkText, index)
		p.analyzer.Apply(summary, report)
		if !report.Dropped && report.Text != "" {
			surviving = append(surviving, report)
		}
	}

	if len(surviving) == 0 {
		p.logger.Debug("artifact yielded no usable text", "job", jobId, "path", file.Path)
		if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactSkippedEmpty,
			ledger.ArtifactUpdate{Extractor: extractor, ChunkCount: 0}); err != nil {
			return nil, err
		}
		return nil, advance()
	}

	texts := make([]string, len(surviving))
	for i, report := range surviving {
		texts[i] = report.Text
	}

	vectors, embedErr := p.encoder.Encode(ctx, texts)
	if embedErr != nil {
		if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactFailed,
			ledger.ArtifactUpdate{Extractor: extractor, ChunkCount: -1, Error: embedErr.Error()}); err != nil {
			return nil, err
		}
		if core.IsFatal(embedErr) {
			return embedErr, nil
		}
		return embedErr, advance()
	}

	// Persisted indices are reassigned over the survivors so the stored
	// set stays contiguous from zero even when validation dropped a
	// middle chunk. Diagnostic reports keep the pre-drop positions.
	chunks := make([]core.Chunk, len(surviving))
	points := make([]vectorstore.Point, len(surviving))
	for i, report := range surviving {
		pointId := uuid.NewString()
		payload := map[string]any{
			"artifact_id": artifact.Id.String(),
			"chunk_index": i,
			"area":        loc.AreaSlug,
			"agent":       loc.AgentSlug,
			"source_path": file.Path,
			"text":        report.Text,
			"token_count": report.TokenCount,
		}
		points[i] = vectorstore.Point{Id: pointId, Vector: vectors[i], Payload: payload}
		chunks[i] = core.Chunk{
			Id:          uuid.New(),
			ArtifactId:  artifact.Id,
			Index:       i,
			TextPreview: preview(report.Text),
			TokenCount:  report.TokenCount,
			PointId:     pointId,
			Payload:     payload,
		}
	}

	if upsertErr := p.vectors.Upsert(ctx, loc.AreaSlug, points); upsertErr != nil {
		if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactFailed,
			ledger.ArtifactUpdate{Extractor: extractor, ChunkCount: -1, Error: upsertErr.Error()}); err != nil {
			return nil, err
		}
		return upsertErr, advance()
	}

	if err := p.store.CreateChunks(ctx, chunks); err != nil {
		return nil, err
	}
	if err := p.store.MarkArtifactStatus(ctx, artifact.Id, core.ArtifactCompleted,
		ledger.ArtifactUpdate{Extractor: extractor, ChunkCount: len(chunks)}); err != nil {
		return nil, err
	}

	p.logger.Info("artifact ingested",
		"job", jobId, "path", file.Path, "extractor", extractor, "chunks", len(chunks))
	return nil, advance()
}

func (p *Pipeline) failJob(ctx context.Context, jobId uuid.UUID, cause error) error {
	p.logger.Error("job failed", "job", jobId, "err", cause)
	return p.store.MarkJobStatus(ctx, jobId, core.JobFailed, cause.Error())
}

func (p *Pipeline) collect(ctx context.Context, jobId uuid.UUID) (*Result, error) {
	job, err := p.store.GetJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	artifacts, err := p.store.ListArtifactsForJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	return &Result{Job: job, Artifacts: artifacts}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()
	return core.ContentHash(f)
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
