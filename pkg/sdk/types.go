package storyrag

import (
	"time"

	"github.com/kailas-cloud/storyrag/internal/domain/document"
	"github.com/kailas-cloud/storyrag/internal/usecase/answer"
	"github.com/kailas-cloud/storyrag/internal/usecase/session"
)

// Format is the source format of an ingested document.
type Format string

// Supported formats.
const (
	FormatTXT    Format = "txt"
	FormatPDF    Format = "pdf"
	FormatDOC    Format = "doc"
	FormatDOCX   Format = "docx"
	FormatPasted Format = "pasted"
)

// NotFoundAnswer is the answer text when the session's documents do not hold the answer.
const NotFoundAnswer = answer.NotFound

// Session is an isolated document workspace.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastActive time.Time
}

// SessionStats is a session with its index totals.
type SessionStats struct {
	Session
	Documents   int
	Chunks      int
	ChunkCounts map[string]int // document id -> chunks
}

// Document describes an ingested document.
type Document struct {
	ID         string
	SessionID  string
	Title      string
	Format     Format
	Text       string
	ChunkCount int
	CreatedAt  time.Time
}

// Citation is one chunk an answer was grounded on.
type Citation struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64
}

// Answer is a grounded reply. ChunkIDs and Scores are aligned, most relevant first.
type Answer struct {
	Text      string
	ChunkIDs  []string
	Scores    []float64
	Citations []Citation
}

// Found reports whether the model found the answer in the session's documents.
func (a Answer) Found() bool { return a.Text != NotFoundAnswer }

func sessionFromInfo(info session.Info) Session {
	return Session{ID: info.ID, CreatedAt: info.CreatedAt, LastActive: info.LastActive}
}

func documentFromDomain(d document.Document) Document {
	return Document{
		ID:         d.ID(),
		SessionID:  d.SessionID(),
		Title:      d.Title(),
		Format:     Format(d.Format()),
		Text:       d.Text(),
		ChunkCount: d.ChunkCount(),
		CreatedAt:  d.CreatedAt(),
	}
}

func answerFromResult(r answer.Result) Answer {
	a := Answer{
		Text:      r.Answer,
		ChunkIDs:  r.ChunkIDs,
		Scores:    r.Scores,
		Citations: make([]Citation, len(r.Citations)),
	}
	for i, c := range r.Citations {
		a.Citations[i] = Citation{ChunkID: c.ChunkID, DocumentID: c.DocumentID, Text: c.Text, Score: c.Score}
	}
	return a
}
