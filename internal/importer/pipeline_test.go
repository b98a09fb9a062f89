package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactflow/importer/internal/contact"
	"github.com/contactflow/importer/internal/jobs"
	"github.com/contactflow/importer/internal/mapping"
	"github.com/contactflow/importer/internal/observability/metrics"
	"github.com/contactflow/importer/internal/source"
)

var testMapping = mapping.Mapping{
	mapping.FieldClientNumber: "ClientID",
	mapping.FieldLastName:     "LastName",
	mapping.FieldFirstName:    "FirstName",
	mapping.FieldPhone:        "Phone",
	mapping.FieldEmail:        "Email",
}

const testHeader = "ClientID,LastName,FirstName,Phone,Email\n"

// fakeCommitter records committed batches and tracks how many commits run
// at once.
type fakeCommitter struct {
	err   error
	delay time.Duration

	mu        sync.Mutex
	batches   [][]contact.Candidate
	active    int
	maxActive int
}

func (f *fakeCommitter) CommitBatch(_ context.Context, batch []contact.Candidate) error {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.active--
	f.batches = append(f.batches, batch)
	f.mu.Unlock()
	return f.err
}

func (f *fakeCommitter) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// fakeFallback succeeds every record unless fail selects it.
type fakeFallback struct {
	fail func(contact.Candidate) bool
}

func (f *fakeFallback) Replay(_ context.Context, batch []contact.Candidate, agg *contact.Aggregator) int {
	succeeded := 0
	for _, c := range batch {
		if f.fail != nil && f.fail(c) {
			agg.AddRejection(contact.ReasonOther, "replay failed")
			continue
		}
		agg.AddSuccess(1)
		succeeded++
	}
	return succeeded
}

func newTestImporter(committer BatchCommitter, fallback FallbackStrategy, js jobs.Store, cfg Config) *Importer {
	return New(committer, fallback, js, nil, cfg, nil)
}

func TestRunImportsValidRows(t *testing.T) {
	fc := &fakeCommitter{}
	imp := newTestImporter(fc, &fakeFallback{}, nil, Config{})

	csv := testHeader +
		"C1,Doe,Jane,0102030405,jane@acme.test\n" +
		"C2,Smith,Bob,0102030406,bob@acme.test\n" +
		",Orphan,Eve,0102030407,eve@acme.test\n"

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(csv), Options{Mapping: testMapping})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRecords)
	assert.Equal(t, 2, res.SuccessfulImports)
	assert.Equal(t, 1, res.FailedImports)
	assert.Equal(t, 1, res.FailedDueToMissingClientNumber)
	assert.Equal(t, res.TotalRecords, res.SuccessfulImports+res.FailedImports)

	require.Len(t, fc.batches, 1)
	first := fc.batches[0][0]
	assert.Equal(t, "C1", first.ClientNumber)
	assert.Equal(t, DefaultProfile, first.Profile)
	assert.Equal(t, DefaultStatus, first.Status)
}

func TestRunSplitsIntoBatches(t *testing.T) {
	fc := &fakeCommitter{}
	imp := newTestImporter(fc, &fakeFallback{}, nil, Config{BatchSize: 4})

	var sb strings.Builder
	sb.WriteString(testHeader)
	for i := 0; i < 9; i++ {
		fmt.Fprintf(&sb, "C%d,Doe,Jane,01020304%02d,\n", i, i)
	}

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(sb.String()), Options{Mapping: testMapping})
	require.NoError(t, err)
	assert.Equal(t, 9, res.SuccessfulImports)

	sizes := fc.batchSizes()
	require.Len(t, sizes, 3)
	total, full := 0, 0
	for _, n := range sizes {
		total += n
		if n == 4 {
			full++
		}
	}
	assert.Equal(t, 9, total)
	assert.Equal(t, 2, full)
}

func TestRunBoundsConcurrentCommits(t *testing.T) {
	fc := &fakeCommitter{delay: 20 * time.Millisecond}
	imp := newTestImporter(fc, &fakeFallback{}, nil, Config{BatchSize: 1, MaxConcurrentBatches: 3})

	var sb strings.Builder
	sb.WriteString(testHeader)
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "C%d,,,01020304%02d,\n", i, i)
	}

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(sb.String()), Options{Mapping: testMapping})
	require.NoError(t, err)

	assert.Equal(t, 12, res.SuccessfulImports)
	assert.LessOrEqual(t, fc.maxActive, 3)
	assert.Greater(t, fc.maxActive, 1, "commits never overlapped")
}

func TestRunFallsBackWhenBatchFails(t *testing.T) {
	fc := &fakeCommitter{err: errors.New("batch aborted")}
	fb := &fakeFallback{fail: func(c contact.Candidate) bool {
		return c.ClientNumber == "BAD"
	}}
	imp := newTestImporter(fc, fb, nil, Config{})

	csv := testHeader +
		"C1,,,0102030405,\n" +
		"BAD,,,0102030406,\n" +
		"C3,,,0102030407,\n"

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(csv), Options{Mapping: testMapping})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRecords)
	assert.Equal(t, 2, res.SuccessfulImports)
	assert.Equal(t, 1, res.FailedImports)
	assert.Equal(t, 1, res.FailedDueToOtherErrors)
	assert.Equal(t, res.TotalRecords, res.SuccessfulImports+res.FailedImports)
}

// counterValue reads one labeled counter back from the registry.
func counterValue(t *testing.T, reg *prometheus.Registry, name, labelValue string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRunCountsFallbackRowsInMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewImportMetrics(reg)

	fc := &fakeCommitter{err: errors.New("batch aborted")}
	fb := &fakeFallback{fail: func(c contact.Candidate) bool {
		return c.ClientNumber == "BAD"
	}}
	imp := New(fc, fb, nil, m, Config{}, nil)

	csv := testHeader +
		"C1,,,0102030405,\n" +
		"C2,,,0102030406,\n" +
		"BAD,,,0102030407,\n"

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(csv), Options{Mapping: testMapping})
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessfulImports)

	// Rows persisted through the per-record replay still land in the
	// rows-by-outcome counter.
	assert.Equal(t, 2.0, counterValue(t, reg, "contactflow_import_rows_total", "imported"))
	assert.Equal(t, 1.0, counterValue(t, reg, "contactflow_import_rows_total", "rejected"))
	assert.Equal(t, 1.0, counterValue(t, reg, "contactflow_import_batches_total", "fallback"))
}

func TestRunAllowsDuplicatePhonesByDefault(t *testing.T) {
	fc := &fakeCommitter{}
	imp := newTestImporter(fc, &fakeFallback{}, nil, Config{})

	csv := testHeader +
		"C1,,,0102030405,\n" +
		"C2,,,0102030405,\n"

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(csv), Options{Mapping: testMapping})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessfulImports)
	assert.Zero(t, res.DuplicatePhoneNumbers)
}

func TestRunRejectsIncompleteMapping(t *testing.T) {
	imp := newTestImporter(&fakeCommitter{}, &fakeFallback{}, nil, Config{})

	_, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(testHeader),
		Options{Mapping: mapping.Mapping{mapping.FieldPhone: "Phone"}})
	require.ErrorIs(t, err, mapping.ErrMissingMapping)

	// Strict mode also demands a phone column.
	_, err = imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(testHeader),
		Options{
			Mapping: mapping.Mapping{mapping.FieldClientNumber: "ClientID"},
			Policy:  contact.Policy{StrictMode: true},
		})
	require.ErrorIs(t, err, mapping.ErrMissingMapping)
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	imp := newTestImporter(&fakeCommitter{}, &fakeFallback{}, nil, Config{})

	_, err := imp.Run(context.Background(), "contacts.pdf", "application/pdf",
		strings.NewReader("%PDF-1.4"), Options{Mapping: testMapping})
	require.ErrorIs(t, err, source.ErrInvalidFormat)
}

func TestRunHeaderOnlyFile(t *testing.T) {
	fc := &fakeCommitter{}
	imp := newTestImporter(fc, &fakeFallback{}, nil, Config{})

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(testHeader), Options{Mapping: testMapping})
	require.NoError(t, err)
	assert.Zero(t, res.TotalRecords)
	assert.Empty(t, fc.batches)
}

func TestRunSkipsBlankLines(t *testing.T) {
	fc := &fakeCommitter{}
	imp := newTestImporter(fc, &fakeFallback{}, nil, Config{})

	csv := testHeader +
		"C1,,,0102030405,\n" +
		"\n" +
		"C2,,,0102030406,\n"

	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(csv), Options{Mapping: testMapping})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRecords)
	assert.Equal(t, 2, res.SuccessfulImports)
}

func TestRunReportsFinalProgress(t *testing.T) {
	imp := newTestImporter(&fakeCommitter{}, &fakeFallback{}, nil, Config{})

	var last contact.Result
	csv := testHeader + "C1,,,0102030405,\n"
	res, err := imp.Run(context.Background(), "contacts.csv", "text/csv",
		strings.NewReader(csv), Options{
			Mapping:    testMapping,
			OnProgress: func(r contact.Result) { last = r },
		})
	require.NoError(t, err)
	assert.Equal(t, res, last)
}

func spoolFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func waitForTerminal(t *testing.T, js jobs.Store, id string) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := js.Get(context.Background(), id)
		require.NoError(t, err)
		if job.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestRunAsyncLifecycle(t *testing.T) {
	js := jobs.NewMemoryStore(jobs.DefaultRetention)
	imp := newTestImporter(&fakeCommitter{}, &fakeFallback{}, js, Config{})

	csv := testHeader +
		"C1,Doe,Jane,0102030405,\n" +
		",Orphan,Eve,0102030406,\n"
	path := spoolFile(t, csv)

	id, err := imp.RunAsync(context.Background(), "contacts.csv", "text/csv", path, Options{Mapping: testMapping})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	job := waitForTerminal(t, js, id)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 2, job.TotalRecords)
	assert.Equal(t, 1, job.SuccessfulImports)
	assert.Equal(t, 1, job.FailedDueToMissingClientNumber)
	assert.Equal(t, job.TotalRecords, job.ProcessedRecords)
	assert.NotNil(t, job.CompletedAt)

	// The background run owns and removes the spool file.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}

func TestRunAsyncMarksFailureOnBadInput(t *testing.T) {
	js := jobs.NewMemoryStore(jobs.DefaultRetention)
	imp := newTestImporter(&fakeCommitter{}, &fakeFallback{}, js, Config{})

	path := filepath.Join(t.TempDir(), "upload.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	id, err := imp.RunAsync(context.Background(), "upload.pdf", "application/pdf", path, Options{Mapping: testMapping})
	require.NoError(t, err)

	job := waitForTerminal(t, js, id)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.NotEmpty(t, job.ErrorMessage)
}

func TestRunAsyncRequiresJobStore(t *testing.T) {
	imp := newTestImporter(&fakeCommitter{}, &fakeFallback{}, nil, Config{})

	_, err := imp.RunAsync(context.Background(), "contacts.csv", "text/csv", "/nonexistent", Options{Mapping: testMapping})
	require.ErrorIs(t, err, ErrNoJobStore)
}
