package document

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxTitleLength caps user supplied titles, in characters.
const MaxTitleLength = 256

// Document is an ingested document owned by a session (immutable value object).
type Document struct {
	id         string
	sessionID  string
	title      string
	format     Format
	text       string
	chunkCount int
	createdAt  time.Time
}

// New validates and creates a Document holding normalized text.
func New(id, sessionID, title string, format Format, text string, createdAt time.Time) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if sessionID == "" {
		return Document{}, fmt.Errorf("session ID is required")
	}
	if !format.Valid() {
		return Document{}, fmt.Errorf("unknown format %q", format)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return Document{}, fmt.Errorf("title too long (max %d)", MaxTitleLength)
	}
	if text == "" {
		return Document{}, fmt.Errorf("text is required")
	}
	return Document{
		id:        id,
		sessionID: sessionID,
		title:     title,
		format:    format,
		text:      text,
		createdAt: createdAt.UTC(),
	}, nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// SessionID returns the owning session.
func (d *Document) SessionID() string { return d.sessionID }

// Title returns the file name or the pasted title.
func (d *Document) Title() string { return d.title }

// Format returns the source format.
func (d *Document) Format() Format { return d.format }

// Text returns the normalized text.
func (d *Document) Text() string { return d.text }

// ChunkCount returns how many chunks were indexed for the document.
func (d *Document) ChunkCount() int { return d.chunkCount }

// CreatedAt returns the ingestion time (UTC).
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// WithChunkCount returns a copy with the indexed chunk count set.
func (d Document) WithChunkCount(n int) Document {
	d.chunkCount = n
	return d
}
