package aiagents

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/panjf2000/ants/v2"

	"github.com/PiloTracer/aiagents/ai"
	"github.com/PiloTracer/aiagents/core"
	"github.com/PiloTracer/aiagents/extract"
	"github.com/PiloTracer/aiagents/ingestion"
	"github.com/PiloTracer/aiagents/ledger"
	"github.com/PiloTracer/aiagents/source"
	"github.com/PiloTracer/aiagents/tokens"
	"github.com/PiloTracer/aiagents/vectorstore"
)

// Service bundles the ingestion pipeline, the ledger and the vector
// store behind one façade. It is safe for concurrent use.
type Service struct {
	store    *ledger.Store
	pipeline *ingestion.Pipeline
	pool     *ants.Pool
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	embedder ai.Embedder
	backends []extract.Backend
	poolSize int
}

// WithEmbedder injects a pre-built embedder instead of resolving one
// from the configuration. Used by tests and embedding callers that
// manage their own provider.
func WithEmbedder(embedder ai.Embedder) ServiceOption {
	return func(o *serviceOptions) { o.embedder = embedder }
}

// WithExtractionBackends replaces the default extraction chain.
func WithExtractionBackends(backends ...extract.Backend) ServiceOption {
	return func(o *serviceOptions) { o.backends = backends }
}

// WithPoolSize sets the async worker pool size. Default is half the
// CPU count, minimum 1.
func WithPoolSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		if size >= 1 {
			o.poolSize = size
		}
	}
}

// NewService wires a Service from configuration.
func NewService(cfg *Config, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		poolSize: defaultPoolSize(),
	}
	for _, opt := range opts {
		opt(options)
	}

	embedder := options.embedder
	if embedder == nil {
		var err error
		embedder, err = NewEmbedder(cfg.EmbeddingAIConfig())
		if err != nil {
			return nil, err
		}
	}

	backends := options.backends
	if backends == nil {
		var err error
		backends, err = buildBackends(cfg)
		if err != nil {
			return nil, err
		}
	}

	store, err := ledger.NewStore(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}

	analyzer, err := tokens.NewAnalyzer(
		tokens.WithDropThreshold(cfg.Tokens.DropThreshold),
		tokens.WithSampleCap(cfg.Tokens.SampleCap),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	vectors := vectorstore.NewClient(
		vectorstore.WithEndpoint(cfg.Qdrant.URL),
		vectorstore.WithAPIKey(cfg.Qdrant.APIKey),
		vectorstore.WithMaxUpsertBatch(cfg.Qdrant.MaxUpsertBatch),
	)

	dimension := cfg.Embedding.Dimension
	if dimension <= 0 {
		dimension = ai.DefaultDimension
	}

	pipeline, err := ingestion.NewPipeline(
		source.NewRegistry(source.NewLocalAdapter(cfg.Source.AllowedExtensions)),
		extract.NewChain(backends...),
		ingestion.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		ingestion.NewBatchEncoder(embedder, dimension, cfg.Embedding.MaxBatchSize),
		analyzer,
		store,
		vectors,
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	pool, err := ants.NewPool(options.poolSize)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Service{
		store:    store,
		pipeline: pipeline,
		pool:     pool,
		logger:   slog.Default().With("component", "service"),
	}, nil
}

// buildBackends assembles the default extraction chain in priority
// order: structured PDF (vision-assisted when enabled), vision OCR,
// tesseract OCR, plaintext decode.
func buildBackends(cfg *Config) ([]extract.Backend, error) {
	var vision *extract.VisionBackend
	if cfg.Extract.VisionEnabled {
		var err error
		vision, err = extract.NewVisionBackend(extract.VisionConfig{
			Host:   cfg.Extract.VisionHost,
			APIKey: cfg.Extract.VisionAPIKey,
			Model:  cfg.Extract.VisionModel,
		})
		if err != nil {
			return nil, err
		}
	}

	backends := []extract.Backend{extract.NewPDFBackend(vision)}
	if vision != nil {
		backends = append(backends, vision)
	}
	backends = append(backends, extract.NewTesseractBackend(), extract.NewPlaintextBackend())
	return backends, nil
}

// IngestRequest carries one or more locations to ingest.
type IngestRequest struct {
	ForceReprocess bool
	Locations      []core.Location
}

// Ingest processes every location synchronously, one job per location.
// Each job runs to a terminal state before the next starts; a job
// infrastructure failure aborts the remaining locations.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) ([]*ingestion.Result, error) {
	if len(req.Locations) == 0 {
		return nil, ErrNoLocations
	}

	results := make([]*ingestion.Result, 0, len(req.Locations))
	for _, loc := range req.Locations {
		result, err := s.pipeline.RunLocation(ctx, loc, req.ForceReprocess)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// IngestAsync submits the request to the worker pool and returns
// immediately. Job progress is observable through ListJobs. Within
// each job processing stays sequential; the pool only overlaps whole
// requests.
func (s *Service) IngestAsync(req IngestRequest) error {
	if len(req.Locations) == 0 {
		return ErrNoLocations
	}
	return s.pool.Submit(func() {
		if _, err := s.Ingest(context.Background(), req); err != nil {
			s.logger.Error("async ingest failed", "err", err)
		}
	})
}

// ListJobs returns jobs newest first, optionally filtered by area.
func (s *Service) ListJobs(ctx context.Context, areaSlug string, limit int) ([]core.IngestionJob, error) {
	return s.store.ListJobs(ctx, areaSlug, limit)
}

// GetJob returns one job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*core.IngestionJob, error) {
	jobId, err := parseJobId(id)
	if err != nil {
		return nil, err
	}
	return s.store.GetJob(ctx, jobId)
}

// ArtifactsForJob returns the artifacts recorded for a job.
func (s *Service) ArtifactsForJob(ctx context.Context, id string) ([]core.Artifact, error) {
	jobId, err := parseJobId(id)
	if err != nil {
		return nil, err
	}
	return s.store.ListArtifactsForJob(ctx, jobId)
}

// Close releases the worker pool and the ledger.
func (s *Service) Close() error {
	s.pool.Release()
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing ledger", "err", err)
		return err
	}
	return nil
}

func defaultPoolSize() int {
	size := runtime.NumCPU() / 2
	if size < 1 {
		size = 1
	}
	return size
}
