package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
	"github.com/pkordes/missionmap/internal/syncer"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// requestError answers a request rejected before reaching the service layer
// (malformed body or parameter).
func requestError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, "validation_error", message)
}

// serviceError maps an error returned by a service or the sync controller to
// a status code. Unknown errors are logged and hidden behind a generic 500.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", unwrapMessage(err))
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "not_ready", "the document is still loading, try again shortly")
	case errors.Is(err, syncer.ErrNoRemote):
		writeError(w, http.StatusConflict, "no_remote", "this install runs without a remote backend")
	case errors.Is(err, remote.ErrAuth):
		writeError(w, http.StatusBadGateway, "remote_auth", "the remote backend rejected the stored credential")
	case errors.Is(err, remote.ErrNetwork):
		writeError(w, http.StatusBadGateway, "remote_unavailable", "the remote backend could not be reached")
	default:
		s.log.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// opPrefix matches the "pkg.Type.Method: " prefixes added while wrapping.
var opPrefix = regexp.MustCompile(`^(?:[a-z]+\.[A-Z][A-Za-z]*\.[A-Za-z]+: )+`)

// unwrapMessage extracts the human-readable part of a wrapped sentinel error.
//
//	"service.RegionService.AddMission: validation error: title is required" → "title is required"
//	"service.LibraryService.Delete: library entry \"x\": not found"         → "library entry \"x\" not found"
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := opPrefix.ReplaceAllString(err.Error(), "")
	msg = strings.TrimPrefix(msg, domain.ErrValidation.Error()+": ")
	if rest, ok := strings.CutSuffix(msg, ": "+domain.ErrNotFound.Error()); ok {
		return rest + " not found"
	}
	return msg
}
