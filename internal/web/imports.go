package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/contactflow/importer/internal/importer"
	"github.com/contactflow/importer/internal/logging"
	"github.com/contactflow/importer/internal/mapping"
)

// memoryThreshold is how much of a multipart body stays in memory before
// spilling to disk. Uploads may reach the 500 MB ceiling, so this stays
// small.
const memoryThreshold = 32 << 20

// importRequest is one parsed submission.
type importRequest struct {
	file     multipart.File
	filename string
	mimeType string
	opts     importer.Options
}

func (req *importRequest) close() {
	if req.file != nil {
		req.file.Close()
	}
}

// parseImportRequest decodes the multipart body shared by the sync and
// async endpoints: file, columnMapping (JSON), optional profile and status.
func (s *Server) parseImportRequest(w http.ResponseWriter, r *http.Request) (*importRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize)

	if err := r.ParseMultipartForm(memoryThreshold); err != nil {
		return nil, fmt.Errorf("file too large or malformed multipart body: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("no file provided")
	}

	m, err := mapping.Parse(r.FormValue("columnMapping"))
	if err != nil {
		file.Close()
		return nil, err
	}

	return &importRequest{
		file:     file,
		filename: header.Filename,
		mimeType: header.Header.Get("Content-Type"),
		opts: importer.Options{
			Mapping: m,
			Policy:  s.cfg.Policy,
			Profile: r.FormValue("profile"),
			Status:  r.FormValue("status"),
		},
	}, nil
}

// handleImport runs the pipeline inline and returns the final counters.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseImportRequest(w, r)
	if err != nil {
		if errors.Is(err, mapping.ErrMissingMapping) {
			s.respondError(w, r, err)
			return
		}
		s.logError(r, http.StatusBadRequest, kindInvalidRequest, err)
		writeError(w, http.StatusBadRequest, kindInvalidRequest, err.Error())
		return
	}
	defer req.close()

	result, err := s.runner.Run(r.Context(), req.filename, req.mimeType, req.file, req.opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "file", req.filename).Info("import completed",
		"total", result.TotalRecords,
		"imported", result.SuccessfulImports,
		"failed", result.FailedImports,
	)
	writeJSON(w, http.StatusOK, result)
}

// handleImportAsync spools the upload to disk, registers a job and returns
// its id. The background run owns the spool file from here on.
func (s *Server) handleImportAsync(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseImportRequest(w, r)
	if err != nil {
		if errors.Is(err, mapping.ErrMissingMapping) {
			s.respondError(w, r, err)
			return
		}
		s.logError(r, http.StatusBadRequest, kindInvalidRequest, err)
		writeError(w, http.StatusBadRequest, kindInvalidRequest, err.Error())
		return
	}
	defer req.close()

	path, err := spoolUpload(req.file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("spool upload: %w", err))
		return
	}

	jobID, err := s.runner.RunAsync(r.Context(), req.filename, req.mimeType, path, req.opts)
	if err != nil {
		os.Remove(path)
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "file", req.filename, "job_id", jobID).
		Info("import accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":   jobID,
		"message": "import started",
	})
}

// handleJobStatus returns the polling snapshot of an asynchronous run.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// spoolUpload copies the multipart file to a temp file so the detached run
// can read it after the request body is gone.
func spoolUpload(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "import-upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
