package storyrag

import "github.com/kailas-cloud/storyrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSessionNotFound        = domain.ErrSessionNotFound
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrEmptyIndex             = domain.ErrEmptyIndex
	ErrUnsupportedFormat      = domain.ErrUnsupportedFormat
	ErrEncoding               = domain.ErrEncoding
	ErrCorruptFile            = domain.ErrCorruptFile
	ErrEmptyDocument          = domain.ErrEmptyDocument
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrInvalidConfig          = domain.ErrInvalidConfig
	ErrEmbeddingService       = domain.ErrEmbeddingService
	ErrSynthesis              = domain.ErrSynthesis
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrDimensionMismatch      = domain.ErrDimensionMismatch
)
