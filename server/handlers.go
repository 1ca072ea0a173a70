package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/PiloTracer/aiagents"
	"github.com/PiloTracer/aiagents/core"
	"github.com/PiloTracer/aiagents/ingestion"
)

type locationPayload struct {
	URI       string `json:"uri" validate:"required"`
	AreaSlug  string `json:"area_slug" validate:"required"`
	AgentSlug string `json:"agent_slug" validate:"required"`
	// Recursive defaults to true when omitted.
	Recursive *bool `json:"recursive"`
}

type ingestRequest struct {
	Locations      []locationPayload `json:"locations" validate:"required,min=1,dive"`
	ForceReprocess bool              `json:"force_reprocess"`
}

type jobSummary struct {
	Id                 string             `json:"id"`
	AreaSlug           string             `json:"area_slug"`
	AgentSlug          string             `json:"agent_slug"`
	SourceURI          string             `json:"source_uri"`
	Status             string             `json:"status"`
	TotalArtifacts     int                `json:"total_artifacts"`
	ProcessedArtifacts int                `json:"processed_artifacts"`
	ErrorMessage       string             `json:"error_message,omitempty"`
	TokenSummary       *core.TokenSummary `json:"token_summary,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type artifactSummary struct {
	Id          string    `json:"id"`
	SourcePath  string    `json:"source_path"`
	SourceHash  string    `json:"source_hash"`
	ContentType string    `json:"content_type,omitempty"`
	Extractor   string    `json:"extractor,omitempty"`
	Status      string    `json:"status"`
	ChunkCount  int       `json:"chunk_count"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ingestResponse struct {
	Job       jobSummary        `json:"job"`
	Artifacts []artifactSummary `json:"artifacts"`
}

type listJobsResponse struct {
	Jobs []jobSummary `json:"jobs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	locations := make([]core.Location, len(req.Locations))
	for i, loc := range req.Locations {
		recursive := true
		if loc.Recursive != nil {
			recursive = *loc.Recursive
		}
		locations[i] = core.Location{
			URI:       loc.URI,
			AreaSlug:  loc.AreaSlug,
			AgentSlug: loc.AgentSlug,
			Recursive: recursive,
		}
	}

	results, err := s.service.Ingest(r.Context(), aiagents.IngestRequest{
		ForceReprocess: req.ForceReprocess,
		Locations:      locations,
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidSlug) || errors.Is(err, core.ErrEmptyURI) ||
			errors.Is(err, core.ErrEmptyAreaSlug) || errors.Is(err, core.ErrEmptyAgentSlug) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("ingest failed", "err", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	responses := make([]ingestResponse, len(results))
	for i, result := range results {
		responses[i] = toIngestResponse(result)
	}
	writeJSON(w, http.StatusAccepted, responses)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")

	jobs, err := s.service.ListJobs(r.Context(), area, 0)
	if err != nil {
		s.logger.Error("listing jobs failed", "err", err)
		writeError(w, http.StatusInternalServerError, "listing jobs failed")
		return
	}

	resp := listJobsResponse{Jobs: make([]jobSummary, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobSummary(&jobs[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func toIngestResponse(result *ingestion.Result) ingestResponse {
	resp := ingestResponse{
		Job:       toJobSummary(result.Job),
		Artifacts: make([]artifactSummary, len(result.Artifacts)),
	}
	for i, artifact := range result.Artifacts {
		resp.Artifacts[i] = artifactSummary{
			Id:          artifact.Id.String(),
			SourcePath:  artifact.SourcePath,
			SourceHash:  artifact.SourceHash,
			ContentType: artifact.ContentType,
			Extractor:   artifact.Extractor,
			Status:      string(artifact.Status),
			ChunkCount:  artifact.ChunkCount,
			Error:       artifact.Error,
			CreatedAt:   artifact.CreatedAt,
		}
	}
	return resp
}

func toJobSummary(job *core.IngestionJob) jobSummary {
	return jobSummary{
		Id:                 job.Id.String(),
		AreaSlug:           job.AreaSlug,
		AgentSlug:          job.AgentSlug,
		SourceURI:          job.SourceURI,
		Status:             string(job.Status),
		TotalArtifacts:     job.TotalArtifacts,
		ProcessedArtifacts: job.ProcessedArtifacts,
		ErrorMessage:       job.ErrorMessage,
		TokenSummary:       job.TokenSummary,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
