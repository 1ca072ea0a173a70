package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFBackend extracts text from PDF documents using pdfcpu. When a
// vision backend is attached, documents whose content streams carry no
// extractable text (scanned PDFs) are handed to it instead of failing.
type PDFBackend struct {
	vision  *VisionBackend
	tempDir string
	logger  *slog.Logger
}

// Compile-time interface assertion.
var _ Backend = (*PDFBackend)(nil)

// NewPDFBackend creates the structured PDF extractor. vision may be nil
// to disable vision-language assistance.
func NewPDFBackend(vision *VisionBackend) *PDFBackend {
	return &PDFBackend{
		vision:  vision,
		tempDir: filepath.Join(os.TempDir(), "aiagents-pdf"),
		logger:  slog.Default().With("component", "pdf-extractor"),
	}
}

func (b *PDFBackend) Name() string { return "pdf" }

// Extract pulls the text content of every page, in page order.
func (b *PDFBackend) Extract(ctx context.Context, path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return "", fmt.Errorf("not a PDF file: %s", path)
	}

	if err := os.MkdirAll(b.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	outDir, err := os.MkdirTemp(b.tempDir, "pages_")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts := make(map[int]string)
	entries, _ := os.ReadDir(outDir)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = scrapeContentText(string(content))
	}

	pages := make([]int, 0, len(pageTexts))
	for pageNum := range pageTexts {
		pages = append(pages, pageNum)
	}
	sort.Ints(pages)

	var builder strings.Builder
	for _, pageNum := range pages {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	text := builder.String()
	if strings.TrimSpace(text) == "" && b.vision != nil {
		// No text layer; likely a scanned document.
		b.logger.Debug("no text layer found, delegating to vision backend",
			"path", path, "pages", pageCount)
		return b.vision.Extract(ctx, path)
	}
	return text, nil
}

// scrapeContentText pulls literal strings shown by Tj/TJ operators out
// of a PDF content stream. pdfcpu extracts raw streams; the visible text
// lives in parenthesized string literals.
func scrapeContentText(content string) string {
	var out strings.Builder
	var current strings.Builder
	depth := 0
	escaped := false

	for i := 0; i < len(content); i++ {
		ch := content[i]
		if depth == 0 {
			if ch == '(' {
				depth++
			}
			continue
		}
		if escaped {
			switch ch {
			case 'n':
				current.WriteByte('\n')
			case 't':
				current.WriteByte('\t')
			case '(', ')', '\\':
				current.WriteByte(ch)
			}
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '(':
			depth++
			current.WriteByte(ch)
		case ')':
			depth--
			if depth == 0 {
				if out.Len() > 0 {
					out.WriteByte(' ')
				}
				out.WriteString(current.String())
				current.Reset()
			} else {
				current.WriteByte(ch)
			}
		default:
			current.WriteByte(ch)
		}
	}
	return out.String()
}
