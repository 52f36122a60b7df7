package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	logpkg "github.com/kailas-cloud/storyrag/internal/logger"
)

const (
	msgUnprocessable = "file could not be processed"
	msgUnavailable   = "service temporarily unavailable"
	msgEmptyIndex    = "upload a document first"
	msgInternal      = "internal error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: service failures win over the provider
// details they wrap, so a rate-limited call that exhausted its retries is a 503.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound, ""),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound, ""),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedFormat, ""),
		sentinelHandler(domain.ErrEncoding, http.StatusUnprocessableEntity, CodeUnprocessable, msgUnprocessable),
		sentinelHandler(domain.ErrCorruptFile, http.StatusUnprocessableEntity, CodeUnprocessable, msgUnprocessable),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusUnprocessableEntity, CodeUnprocessable, msgUnprocessable),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed, ""),
		sentinelHandler(domain.ErrEmptyIndex, http.StatusConflict, CodeEmptyIndex, msgEmptyIndex),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded, ""),
		sentinelHandler(domain.ErrEmbeddingService, http.StatusServiceUnavailable, CodeServiceUnavailable, msgUnavailable),
		sentinelHandler(domain.ErrSynthesis, http.StatusServiceUnavailable, CodeServiceUnavailable, msgUnavailable),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited, ""),
	}
}

// sentinelHandler matches a single sentinel error. An empty msg uses the sentinel's own text.
func sentinelHandler(sentinel error, status int, code ErrorCode, msg string) errorHandler {
	if msg == "" {
		msg = sentinel.Error()
	}
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError maps err to a response. Unmapped errors are 500 with no detail.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	noteError(r, err)
	log := logpkg.FromContext(r.Context())
	if domain.IsInputError(err) {
		log.Info("request rejected", zap.Error(err))
	} else {
		log.Warn("domain error", zap.Error(err))
	}
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, msgInternal)
}
