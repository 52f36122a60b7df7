package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
	domusage "github.com/kailas-cloud/storyrag/internal/domain/usage"
	logpkg "github.com/kailas-cloud/storyrag/internal/logger"
	healthuc "github.com/kailas-cloud/storyrag/internal/usecase/health"
	"github.com/kailas-cloud/storyrag/internal/usecase/ingest"
)

// DefaultMaxUploadBytes caps request bodies when no limit is configured.
const DefaultMaxUploadBytes = 20 << 20

const multipartMemory = 8 << 20

// Server serves the storyrag HTTP API.
type Server struct {
	sessions      Sessions
	ingest        Ingester
	answers       Answerer
	usage         UsageReporter
	health        HealthChecker
	calls         CallReader
	maxUpload     int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. calls may be nil.
func NewServer(
	sessions Sessions,
	ingester Ingester,
	answers Answerer,
	usage UsageReporter,
	health HealthChecker,
	calls CallReader,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions:      sessions,
		ingest:        ingester,
		answers:       answers,
		usage:         usage,
		health:        health,
		calls:         calls,
		maxUpload:     maxUploadBytes,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// CreateSession handles POST /api/v1/sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	info := s.sessions.Create(r.Context())
	logpkg.FromContext(r.Context()).Info("session created", zap.String("session_id", info.ID))
	writeJSON(w, http.StatusCreated, sessionToResponse(info))
}

// GetSession handles GET /api/v1/sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Stats(sessionID(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	counts := st.ChunkCounts
	if counts == nil {
		counts = map[string]int{}
	}
	writeJSON(w, http.StatusOK, SessionStatsResponse{
		SessionResponse: sessionToResponse(st.Info),
		Documents:       st.Documents,
		Chunks:          st.Chunks,
		ChunkCounts:     counts,
	})
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Teardown(context.WithoutCancel(r.Context()), sessionID(r)); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument handles POST /api/v1/sessions/{sessionID}/documents.
// The body is multipart with a "file" part and optional "format" and "title" fields.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeBodyError(w, err, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	var format document.Format
	if declared := r.FormValue("format"); declared != "" {
		format, err = document.ParseFormat(declared)
	} else {
		format, err = document.FormatFromFilename(header.Filename)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeBodyError(w, err, "failed to read file")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	s.ingestDocument(w, r, ingest.Request{Data: data, Format: format, Title: title})
}

// PasteDocument handles POST /api/v1/sessions/{sessionID}/documents/text.
func (s *Server) PasteDocument(w http.ResponseWriter, r *http.Request) {
	var req PasteRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeBodyError(w, err, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "text is required")
		return
	}

	s.ingestDocument(w, r, ingest.Request{
		Data:   []byte(req.Text),
		Format: document.FormatPasted,
		Title:  strings.TrimSpace(req.Title),
	})
}

func (s *Server) ingestDocument(w http.ResponseWriter, r *http.Request, req ingest.Request) {
	ctx, usage := domain.NewContextWithUsage(context.WithoutCancel(r.Context()))
	doc, err := s.ingest.Ingest(ctx, sessionID(r), req)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentToResponse(doc))
}

// ListDocuments handles GET /api/v1/sessions/{sessionID}/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.sessions.Documents(sessionID(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]DocumentResponse, len(docs))
	for i := range docs {
		items[i] = documentToResponse(docs[i])
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: items, Count: len(items)})
}

// DeleteDocument handles DELETE /api/v1/sessions/{sessionID}/documents/{documentID}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RemoveDocument(sessionID(r), chi.URLParam(r, "documentID")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AskQuestion handles POST /api/v1/sessions/{sessionID}/questions.
func (s *Server) AskQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeBodyError(w, err, "invalid request body")
		return
	}

	ctx, usage := domain.NewContextWithUsage(context.WithoutCancel(r.Context()))
	res, err := s.answers.AnswerQuestion(ctx, sessionID(r), req.Question)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerToResponse(res))
}

// GetStats handles GET /api/v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, _ *http.Request) {
	resp := StatsResponse{Sessions: s.sessions.Len()}
	if s.calls != nil {
		resp.Embedding = callsToResponse(s.calls.EmbeddingSnapshot())
		resp.Completion = callsToResponse(s.calls.CompletionSnapshot())
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "period must be one of day, month, total")
		return
	}
	writeJSON(w, http.StatusOK, usageToResponse(s.usage.GetReport(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// requireSession resolves {sessionID}, refreshes its idle timer and tags the request logger.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)
		if _, err := s.sessions.Touch(id); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		ctx := logpkg.With(r.Context(), zap.String("session_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeBodyError answers 413 for oversized bodies and 400 for anything else.
func (s *Server) writeBodyError(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
			"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
