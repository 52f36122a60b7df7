package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEncoding signals text input that is not valid UTF-8.
	ErrEncoding = errors.New("invalid text encoding")
	// ErrUnsupportedFormat signals an unknown declared file format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptFile signals a structured file that could not be parsed.
	ErrCorruptFile = errors.New("corrupt file")
	// ErrEmptyDocument signals a document with no extractable text.
	ErrEmptyDocument = errors.New("document has no text")
	// ErrInvalidConfig signals bad pipeline settings (chunk size, overlap, dimensions).
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidInput signals a malformed request (blank question, missing file).
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingService signals that the embedding provider failed after retries.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrSynthesis signals that the completion provider failed after retries.
	ErrSynthesis = errors.New("answer synthesis error")
	// ErrTransient marks a failure that is safe to retry.
	ErrTransient = errors.New("transient failure")
	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrDimensionMismatch signals a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex signals a search over a session with no indexed chunks.
	ErrEmptyIndex = errors.New("no documents uploaded yet")

	// ErrSessionNotFound signals an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
)

// ScopeError attaches session and document context to a pipeline failure.
type ScopeError struct {
	Op         string
	SessionID  string
	DocumentID string
	Err        error
}

func (e *ScopeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.SessionID != "" {
		b.WriteString(" session=")
		b.WriteString(e.SessionID)
	}
	if e.DocumentID != "" {
		b.WriteString(" document=")
		b.WriteString(e.DocumentID)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ScopeError) Unwrap() error { return e.Err }

// NewScopeError wraps err with the operation and scope it happened in.
// A nil err stays nil.
func NewScopeError(op, sessionID, documentID string, err error) error {
	if err == nil {
		return nil
	}
	return &ScopeError{Op: op, SessionID: sessionID, DocumentID: documentID, Err: err}
}

// ProviderError describes a failed call to an external model provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Is lets errors.Is(err, ErrTransient) and errors.Is(err, ErrRateLimited) match.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Transient
	case ErrRateLimited:
		return e.StatusCode == 429
	}
	return false
}

// IsInputError reports whether err was caused by the uploaded content or request.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEncoding) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptFile) ||
		errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrInvalidInput)
}
