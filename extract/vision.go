package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const visionPrompt = "Transcribe all text visible in this document. " +
	"Return only the transcribed text, preserving reading order and paragraph breaks. " +
	"Do not describe the document or add commentary."

// VisionBackend extracts text from images and scanned documents by
// asking a vision-language model to transcribe them. It serves as the
// general OCR tier of the chain and assists the PDF backend when a
// document has no text layer.
type VisionBackend struct {
	model  llms.Model
	logger *slog.Logger
}

// Compile-time interface assertion.
var _ Backend = (*VisionBackend)(nil)

// VisionConfig configures the vision-language extraction backend.
type VisionConfig struct {
	// Host is an OpenAI-compatible chat endpoint.
	Host string
	// APIKey may be empty for local services.
	APIKey string
	// Model is a multimodal model identifier.
	Model string
}

// NewVisionBackend creates the vision-language extractor.
func NewVisionBackend(cfg VisionConfig) (*VisionBackend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("vision backend: model is required")
	}

	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.Host != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Host))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewVisionBackendWithModel(client), nil
}

// NewVisionBackendWithModel wraps an existing model client. Tests
// inject fakes through this constructor.
func NewVisionBackendWithModel(model llms.Model) *VisionBackend {
	return &VisionBackend{
		model:  model,
		logger: slog.Default().With("component", "vision-extractor"),
	}
}

func (b *VisionBackend) Name() string { return "vision" }

// Extract sends the file to the vision-language model for transcription.
func (b *VisionBackend) Extract(ctx context.Context, path string) (string, error) {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !supportedVisionType(contentType) {
		return "", fmt.Errorf("unsupported content type for vision extraction: %q", contentType)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(contentType, data),
				llms.TextPart(visionPrompt),
			},
		},
	}

	response, err := b.model.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		b.logger.Error("vision transcription failed", "path", path, "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("no choices returned from vision model")
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}

func supportedVisionType(contentType string) bool {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return true
	case contentType == "application/pdf":
		return true
	default:
		return false
	}
}
