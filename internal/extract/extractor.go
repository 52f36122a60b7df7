// Package extract turns uploaded bytes of a declared format into normalized text.
package extract

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
)

// strategy parses one source format into raw, not yet normalized text.
type strategy func(data []byte) (string, error)

// DefaultMaxExpandedBytes caps the decompressed document body of zipped formats.
const DefaultMaxExpandedBytes = 200 << 20

// expansionRatio bounds how much larger than the upload a decompressed body may be.
const expansionRatio = 10

// Extractor dispatches on the declared format to a parsing strategy.
type Extractor struct {
	strategies  map[document.Format]strategy
	maxExpanded int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithUploadLimit bounds decompressed document bodies relative to the upload size limit.
func WithUploadLimit(maxUploadBytes int64) Option {
	return func(e *Extractor) {
		if maxUploadBytes > 0 {
			e.maxExpanded = maxUploadBytes * expansionRatio
		}
	}
}

// New creates an Extractor with a strategy for every supported format.
func New(opts ...Option) *Extractor {
	e := &Extractor{maxExpanded: DefaultMaxExpandedBytes}
	for _, opt := range opts {
		opt(e)
	}
	e.strategies = map[document.Format]strategy{
		document.FormatTXT:    extractUTF8,
		document.FormatPasted: extractUTF8,
		document.FormatPDF:    extractPDF,
		document.FormatDOCX: func(data []byte) (string, error) {
			return extractDOCX(data, e.maxExpanded)
		},
		document.FormatDOC: extractDOC,
	}
	return e
}

// Extract parses data and returns its normalized text.
func (e *Extractor) Extract(data []byte, format document.Format) (string, error) {
	parse, ok := e.strategies[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}

	raw, err := safeParse(parse, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}

	text := Normalize(raw)
	if text == "" {
		return "", fmt.Errorf("extract %s: %w", format, domain.ErrEmptyDocument)
	}
	return text, nil
}

// safeParse turns a parser panic on malformed input into ErrCorruptFile.
func safeParse(parse strategy, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: parser panic: %v", domain.ErrCorruptFile, r)
		}
	}()
	return parse(data)
}

// extractUTF8 accepts UTF-8 text. A leading UTF-8 or UTF-16 byte order mark is
// stripped and UTF-16 input is transcoded.
func extractUTF8(data []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	if !utf8.Valid(decoded) {
		return "", domain.ErrEncoding
	}
	return string(decoded), nil
}
