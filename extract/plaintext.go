package extract

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"
)

// PlaintextBackend decodes the file as text. It is the last resort of
// the chain and accepts anything readable.
type PlaintextBackend struct{}

// Compile-time interface assertion.
var _ Backend = (*PlaintextBackend)(nil)

// NewPlaintextBackend creates the raw text decode backend.
func NewPlaintextBackend() *PlaintextBackend {
	return &PlaintextBackend{}
}

func (b *PlaintextBackend) Name() string { return "plaintext" }

// Extract reads the file as UTF-8, replacing invalid sequences. When
// the content is mostly invalid UTF-8 it is reinterpreted as Latin-1
// instead, which maps every byte to a code point.
func (b *PlaintextBackend) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	invalid := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		i += size
	}

	// A handful of bad sequences in otherwise valid UTF-8 gets the
	// replacement-character treatment; denser corruption means the file
	// was never UTF-8 to begin with.
	if len(data) > 0 && invalid*20 > len(data) {
		return latin1String(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func latin1String(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
