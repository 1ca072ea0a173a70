package tokens

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/PiloTracer/aiagents/core"
)

const (
	// DefaultDropThreshold is the invalid-token proportion above which a
	// chunk is dropped instead of embedded with degraded content.
	DefaultDropThreshold = 0.5

	// DefaultSampleCap bounds how many chunks per job keep diagnostic
	// token and text samples.
	DefaultSampleCap = 5

	sampleTokenCount = 10
	sampleTextLength = 120
)

// Report is the validation outcome for one chunk.
type Report struct {
	ChunkIndex int
	// Text is the sanitized text that should be embedded. Empty when
	// the chunk was dropped.
	Text              string
	TokenCount        int
	InvalidTokens     int
	InvalidCharacters int
	RemovedCharacters int
	SampleTokens      []int
	SampleText        string
	ValidationNote    string
	// Dropped means the invalid proportion exceeded the threshold even
	// after the ASCII fallback; the chunk is excluded from upsert.
	Dropped bool
	// UsedFallback means the chunk was kept only through an ASCII-safe
	// re-encoding.
	UsedFallback bool
}

// Analyzer tokenizes chunk text, separates valid from invalid tokens
// and applies the sanitize-or-drop policy.
type Analyzer struct {
	encoding      *tiktoken.Tiktoken
	dropThreshold float64
	sampleCap     int
	logger        *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithDropThreshold overrides the invalid-token drop threshold.
func WithDropThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		if threshold > 0 {
			a.dropThreshold = threshold
		}
	}
}

// WithSampleCap overrides the diagnostic sample cap.
func WithSampleCap(cap int) Option {
	return func(a *Analyzer) {
		if cap >= 0 {
			a.sampleCap = cap
		}
	}
}

// NewAnalyzer creates an analyzer over the cl100k_base encoding.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding: %w", err)
	}

	a := &Analyzer{
		encoding:      encoding,
		dropThreshold: DefaultDropThreshold,
		sampleCap:     DefaultSampleCap,
		logger:        slog.Default().With("component", "token-analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SampleCap returns the configured diagnostic sample cap.
func (a *Analyzer) SampleCap() int { return a.sampleCap }

// Analyze validates one chunk. Characters causing invalid tokens are
// stripped and counted; a chunk whose invalid proportion exceeds the
// threshold gets one ASCII-safe re-encoding attempt before being
// dropped.
func (a *Analyzer) Analyze(text string, chunkIndex int) Report {
	report := a.analyzeOnce(text, chunkIndex)
	if !a.exceedsThreshold(report) {
		return report
	}

	// Full-fidelity encoding keeps failing for this chunk; fall back to
	// an ASCII-safe re-encoding before giving up on it.
	asciiText, trimmed := asciiSafe(report.Text)
	fallback := a.analyzeOnce(asciiText, chunkIndex)
	fallback.RemovedCharacters += report.RemovedCharacters + trimmed
	fallback.InvalidCharacters += report.InvalidCharacters

	if a.exceedsThreshold(fallback) || fallback.TokenCount == 0 {
		report.Dropped = true
		report.Text = ""
		report.ValidationNote = fmt.Sprintf(
			"chunk dropped: %d of %d tokens invalid, above threshold %.2f",
			report.InvalidTokens, report.TokenCount, a.dropThreshold)
		a.logger.Warn("dropping chunk with invalid tokens",
			"chunk", chunkIndex, "invalid", report.InvalidTokens, "total", report.TokenCount)
		return report
	}

	fallback.UsedFallback = true
	fallback.ValidationNote = fmt.Sprintf(
		"ASCII fallback applied; %d character(s) trimmed", trimmed)
	a.logger.Warn("chunk required ASCII fallback",
		"chunk", chunkIndex, "trimmed", trimmed)
	return fallback
}

func (a *Analyzer) exceedsThreshold(r Report) bool {
	if r.TokenCount == 0 {
		return r.InvalidTokens > 0
	}
	return float64(r.InvalidTokens)/float64(r.TokenCount) > a.dropThreshold
}

func (a *Analyzer) analyzeOnce(text string, chunkIndex int) Report {
	cleaned, removed := Sanitize(text)

	encoded := a.encoding.Encode(cleaned, nil, nil)
	decoded := a.encoding.Decode(encoded)

	invalidChars := 0
	note := "round-trip encoding matches sanitized text"
	if decoded != cleaned {
		invalidChars = utf8.RuneCountInString(cleaned) - utf8.RuneCountInString(decoded)
		if invalidChars < 0 {
			invalidChars = 0
		}
		note = fmt.Sprintf(
			"round-trip encoding adjusted text to match tokenizer output; %d character(s) replaced",
			invalidChars)
		cleaned = decoded
	}

	invalidTokens := a.countInvalidTokens(encoded)

	sample := encoded
	if len(sample) > sampleTokenCount {
		sample = sample[:sampleTokenCount]
	}

	return Report{
		ChunkIndex:        chunkIndex,
		Text:              cleaned,
		TokenCount:        len(encoded),
		InvalidTokens:     invalidTokens,
		InvalidCharacters: invalidChars,
		RemovedCharacters: removed,
		SampleTokens:      append([]int(nil), sample...),
		SampleText:        truncate(cleaned, sampleTextLength),
		ValidationNote:    note,
	}
}

// Apply folds one chunk report into the running job summary. Every
// chunk contributes to the aggregate counts; only the first sampleCap
// chunks keep diagnostic detail.
func (a *Analyzer) Apply(summary *core.TokenSummary, r Report) {
	summary.TotalTokens += r.TokenCount
	summary.InvalidTokens += r.InvalidTokens
	summary.ValidTokens += r.TokenCount - r.InvalidTokens
	summary.RemovedCharacters += r.RemovedCharacters
	if r.Dropped {
		summary.DroppedChunks++
	}
	if r.UsedFallback {
		summary.FallbackChunks = append(summary.FallbackChunks, r.ChunkIndex)
	}
	if len(summary.Samples) < a.sampleCap {
		summary.Samples = append(summary.Samples, core.TokenSample{
			ChunkIndex:        r.ChunkIndex,
			TokenCount:        r.TokenCount,
			InvalidCharacters: r.InvalidCharacters,
			SampleTokens:      r.SampleTokens,
			SampleText:        r.SampleText,
			ValidationNote:    r.ValidationNote,
		})
	}
}

type runState int

const (
	runComplete runState = iota
	runPartial
	runMalformed
)

// countInvalidTokens walks the token stream grouping contiguous tokens
// into character runs. Byte-level BPE routinely splits a multi-byte
// character (emoji, rarer scripts) across tokens, so a single token's
// partial decode is not evidence of bad input; only a run that can
// never complete a valid sequence counts against the chunk.
func (a *Analyzer) countInvalidTokens(encoded []int) int {
	invalid := 0
	var pending []byte
	pendingTokens := 0

	flush := func(bad bool) {
		if bad {
			invalid += pendingTokens
		}
		pending = pending[:0]
		pendingTokens = 0
	}

	for _, token := range encoded {
		pending = append(pending, a.encoding.Decode([]int{token})...)
		pendingTokens++
		switch classifyRun(pending) {
		case runComplete:
			flush(false)
		case runMalformed:
			flush(true)
		case runPartial:
			// Waiting on continuation bytes from the next token.
		}
	}
	if pendingTokens > 0 {
		flush(true)
	}
	return invalid
}

// classifyRun reports whether a byte run is complete UTF-8, a prefix
// still awaiting continuation bytes, or malformed. Replacement
// characters count as malformed: they only appear where earlier decoding
// already lost data.
func classifyRun(b []byte) runState {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError {
			if continuationBytesNeeded(b) > 0 {
				return runPartial
			}
			return runMalformed
		}
		b = b[size:]
	}
	return runComplete
}

// continuationBytesNeeded reports how many continuation bytes b still
// needs to finish its trailing character, or 0 when b can never become
// valid UTF-8.
func continuationBytesNeeded(b []byte) int {
	if len(b) == 0 || len(b) >= utf8.UTFMax {
		return 0
	}
	var want int
	switch leader := b[0]; {
	case leader>>5 == 0b110:
		want = 2
	case leader>>4 == 0b1110:
		want = 3
	case leader>>3 == 0b11110:
		want = 4
	default:
		return 0
	}
	if len(b) >= want {
		return 0
	}
	for _, c := range b[1:] {
		if c>>6 != 0b10 {
			return 0
		}
	}
	return want - len(b)
}

// asciiSafe strips every non-ASCII rune and returns the trimmed count.
func asciiSafe(text string) (string, int) {
	var builder strings.Builder
	trimmed := 0
	for _, r := range text {
		if r > unicode.MaxASCII {
			trimmed++
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String(), trimmed
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
