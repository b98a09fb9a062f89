package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/contactflow/importer/internal/contact"
	"github.com/contactflow/importer/internal/jobs"
)

// ErrNoJobStore is returned by RunAsync when the importer was wired
// without a job registry.
var ErrNoJobStore = errors.New("async imports require a job store")

// RunAsync registers a pending job and launches the import in a detached
// goroutine over the spooled file at path. The returned job id is pollable
// immediately. The background run owns the spool file and removes it when
// done.
func (imp *Importer) RunAsync(ctx context.Context, filename, contentType, path string, opts Options) (string, error) {
	if imp.jobs == nil {
		return "", ErrNoJobStore
	}
	job, err := imp.jobs.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("create import job: %w", err)
	}

	go imp.runDetached(job.ID, filename, contentType, path, opts)

	return job.ID, nil
}

// runDetached executes one background run to completion. It deliberately
// uses a fresh context so the run survives the originating request, and it
// recovers panics into a failed job instead of taking the process down.
func (imp *Importer) runDetached(jobID, filename, contentType, path string, opts Options) {
	ctx := context.Background()

	defer func() {
		if rec := recover(); rec != nil {
			imp.log.Error("import run panicked", "job_id", jobID, "panic", rec)
			_ = imp.jobs.MarkFailed(ctx, jobID, fmt.Sprintf("internal error: %v", rec))
		}
	}()
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		imp.log.Error("open spooled upload", "job_id", jobID, "error", err)
		_ = imp.jobs.MarkFailed(ctx, jobID, "uploaded file no longer available")
		return
	}
	defer f.Close()

	if err := imp.jobs.MarkProcessing(ctx, jobID); err != nil {
		imp.log.Warn("mark job processing", "job_id", jobID, "error", err)
	}

	opts.OnProgress = func(r contact.Result) {
		_ = imp.jobs.Update(ctx, jobID, func(j *jobs.Job) error {
			if j.Terminal() {
				return nil
			}
			j.Result = r
			j.ProcessedRecords = r.TotalRecords
			return nil
		})
	}

	result, err := imp.Run(ctx, filename, contentType, f, opts)
	if err != nil {
		_ = imp.jobs.MarkFailed(ctx, jobID, err.Error())
		return
	}
	_ = imp.jobs.MarkCompleted(ctx, jobID, result)
}
