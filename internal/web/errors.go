package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contactflow/importer/internal/jobs"
	"github.com/contactflow/importer/internal/logging"
	"github.com/contactflow/importer/internal/mapping"
	"github.com/contactflow/importer/internal/source"
)

// Error kinds surfaced in the JSON error payload.
const (
	kindInvalidFormat  = "InvalidFormat"
	kindMissingMapping = "MissingMapping"
	kindInvalidRequest = "InvalidRequest"
	kindJobNotFound    = "JobNotFound"
	kindRateLimited    = "RateLimited"
	kindInternal       = "Internal"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Message   string `json:"message"`
	ErrorKind string `json:"errorKind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Message: message, ErrorKind: kind})
}

// respondError classifies a pipeline error onto the HTTP contract:
// validation-class failures are 400, an unknown job is 404, everything
// else is a 500 with the detail kept server-side.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := http.StatusInternalServerError, kindInternal
	message := err.Error()

	switch {
	case errors.Is(err, source.ErrInvalidFormat):
		status, kind = http.StatusBadRequest, kindInvalidFormat
	case errors.Is(err, mapping.ErrMissingMapping):
		status, kind = http.StatusBadRequest, kindMissingMapping
	case errors.Is(err, jobs.ErrNotFound):
		status, kind = http.StatusNotFound, kindJobNotFound
	default:
		message = "import failed"
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"kind", kind,
		"error", err.Error(),
	)
	writeError(w, status, kind, message)
}

// logError writes the slog record for request-shaped failures that never
// reached the pipeline.
func (s *Server) logError(r *http.Request, status int, kind string, err error) {
	logging.FromContext(r.Context()).Warn("bad request",
		"path", r.URL.Path,
		"status", status,
		"kind", kind,
		"error", err,
	)
}
