package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

// Format is the declared source format of an uploaded document.
type Format string

// Supported source formats.
const (
	FormatTXT    Format = "txt"
	FormatPDF    Format = "pdf"
	FormatDOC    Format = "doc"
	FormatDOCX   Format = "docx"
	FormatPasted Format = "pasted"
)

// Formats lists every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatTXT, FormatPDF, FormatDOC, FormatDOCX, FormatPasted}
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	switch f {
	case FormatTXT, FormatPDF, FormatDOC, FormatDOCX, FormatPasted:
		return true
	}
	return false
}

// IsText reports whether the format is decoded as plain UTF-8.
func (f Format) IsText() bool {
	return f == FormatTXT || f == FormatPasted
}

// ParseFormat resolves a declared format name ("pdf", ".pdf", "DOCX").
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, s)
	}
	return f, nil
}

// FormatFromFilename derives the format from a file extension.
// Pasted text has no file, so it is never returned here.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: file %q has no extension", domain.ErrUnsupportedFormat, name)
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", err
	}
	if f == FormatPasted {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	return f, nil
}
