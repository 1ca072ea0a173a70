// Package extract converts source files to plain text through a
// prioritized chain of extraction backends.
//
// The chain tries, in order: structured PDF extraction (pdfcpu, with
// optional vision-language assistance for scanned documents), general
// vision-language OCR, the tesseract CLI as a degraded OCR fallback,
// and finally a raw plaintext decode. Any backend error or empty result
// is a soft failure that advances the chain; a file no backend can
// handle yields a chain-exhausted extraction error.
package extract
