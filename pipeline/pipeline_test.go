package pipeline

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/db"
	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/provider"
	"github.com/beroca11/video-orchestrator/provider/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		StageWeights:    "10,20,30,25,15",
		RetryAttempts:   2,
		RetryBackoff:    time.Millisecond,
		RetryBackoffMax: 5 * time.Millisecond,
		CallTimeout:     time.Second,
		JobTimeout:      5 * time.Second,
	}
}

func testProviders() Providers {
	return Providers{
		Script:   &mock.Script{},
		Voice:    &mock.Voice{},
		Editor:   &mock.Editor{},
		Uploader: &mock.Uploader{},
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, repo db.Repository, providers Providers, candidates ...Candidate) *Orchestrator {
	t.Helper()
	if len(candidates) == 0 {
		candidates = []Candidate{{"first", &mock.Backend{Name: "first"}}}
	}
	selector := &Selector{
		Candidates: candidates,
		Attempts:   cfg.RetryAttempts,
		Backoff:    Backoff{Initial: cfg.RetryBackoff, Max: cfg.RetryBackoffMax},
	}
	o, err := New(cfg, repo, selector, providers, quietLogger(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return o
}

func testRequest() job.Request {
	req := job.Request{Prompt: "a day in the life of a lighthouse keeper"}
	req.ApplyDefaults()
	return req
}

// waitTerminal polls the repository until the job reaches a terminal
// status.
func waitTerminal(t *testing.T, repo db.Repository, id string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		j, err := repo.GetJob(id)
		if err != nil {
			t.Fatalf("GetJob() error: %v", err)
		}
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func TestRunCompletes(t *testing.T) {
	repo := db.NewMemory()
	o := newTestOrchestrator(t, testConfig(), repo, testProviders())

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if started.Status != job.StatusPending {
		t.Errorf("initial status = %q, want pending", started.Status)
	}

	j := waitTerminal(t, repo, started.ID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", j.Status, j.ErrorMessage)
	}
	if j.Progress != 100 {
		t.Errorf("progress = %v, want 100", j.Progress)
	}
	if j.CurrentStep != stepDone {
		t.Errorf("current step = %q, want %q", j.CurrentStep, stepDone)
	}
	if j.BackendUsed != "first" {
		t.Errorf("backend used = %q, want first", j.BackendUsed)
	}
	if j.Result == nil {
		t.Fatal("completed job has no result")
	}
	if j.Result.VideoURL == "" {
		t.Error("result has no video url")
	}
	if j.Result.BackendUsed != "first" {
		t.Errorf("result backend = %q, want first", j.Result.BackendUsed)
	}
	if _, ok := j.Result.Metadata["video_segments"]; !ok {
		t.Error("result metadata missing video segment count")
	}
}

func TestRunRecordsFallbackBackend(t *testing.T) {
	repo := db.NewMemory()
	o := newTestOrchestrator(t, testConfig(), repo, testProviders(),
		Candidate{"first", &mock.Backend{Name: "first", FailTimes: -1}},
		Candidate{"second", &mock.Backend{Name: "second"}},
	)

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	j := waitTerminal(t, repo, started.ID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", j.Status, j.ErrorMessage)
	}
	if j.BackendUsed != "second" {
		t.Errorf("backend used = %q, want second", j.BackendUsed)
	}
}

func TestRunScriptStageFails(t *testing.T) {
	repo := db.NewMemory()
	providers := testProviders()
	providers.Script = &mock.Script{Err: &provider.Error{Class: provider.ClassInvalidInput, Message: "prompt rejected"}}
	o := newTestOrchestrator(t, testConfig(), repo, providers)

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	j := waitTerminal(t, repo, started.ID)
	if j.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", j.Status)
	}
	if !strings.Contains(j.ErrorMessage, "script stage") {
		t.Errorf("error message = %q, want script stage failure", j.ErrorMessage)
	}
	if j.Result != nil {
		t.Error("failed job carries a result")
	}
}

func TestRunAllBackendsFail(t *testing.T) {
	repo := db.NewMemory()
	o := newTestOrchestrator(t, testConfig(), repo, testProviders(),
		Candidate{"first", &mock.Backend{Name: "first", FailTimes: -1}},
		Candidate{"second", &mock.Backend{Name: "second", FailTimes: -1}},
	)

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	j := waitTerminal(t, repo, started.ID)
	if j.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", j.Status)
	}
	if !strings.Contains(j.ErrorMessage, "all video backends exhausted") {
		t.Errorf("error message = %q, want backend exhaustion", j.ErrorMessage)
	}
}

func TestCancelRunningJob(t *testing.T) {
	repo := db.NewMemory()
	providers := testProviders()
	providers.Script = &mock.Script{Delay: time.Second}
	o := newTestOrchestrator(t, testConfig(), repo, providers)

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if !o.Cancel(started.ID) {
		t.Fatal("Cancel() = false for a running job")
	}

	j := waitTerminal(t, repo, started.ID)
	if j.Status != job.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", j.Status)
	}
	if j.Result != nil {
		t.Error("cancelled job carries a result")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), db.NewMemory(), testProviders())
	if o.Cancel("no-such-job") {
		t.Error("Cancel() = true for an unknown job")
	}
}

func TestCancelFinishedJob(t *testing.T) {
	repo := db.NewMemory()
	o := newTestOrchestrator(t, testConfig(), repo, testProviders())

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	j := waitTerminal(t, repo, started.ID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("status = %q, want completed", j.Status)
	}
	// Give the run goroutine a moment to drop its cancel handle.
	deadline := time.Now().Add(time.Second)
	for o.Cancel(started.ID) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if o.Cancel(started.ID) {
		t.Error("Cancel() = true after the job finished")
	}
}

func TestJobTimeout(t *testing.T) {
	repo := db.NewMemory()
	cfg := testConfig()
	cfg.JobTimeout = 30 * time.Millisecond
	providers := testProviders()
	providers.Script = &mock.Script{Delay: time.Second}
	o := newTestOrchestrator(t, cfg, repo, providers)

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	j := waitTerminal(t, repo, started.ID)
	if j.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", j.Status)
	}
	if !strings.Contains(j.ErrorMessage, "job timed out after") {
		t.Errorf("error message = %q, want timeout message", j.ErrorMessage)
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	repo := db.NewMemory()
	providers := testProviders()
	providers.Script = &mock.Script{Delay: 10 * time.Millisecond}
	providers.Voice = &mock.Voice{Delay: 10 * time.Millisecond}
	providers.Editor = &mock.Editor{Delay: 10 * time.Millisecond}
	o := newTestOrchestrator(t, testConfig(), repo, providers,
		Candidate{"first", &mock.Backend{Name: "first", Delay: 10 * time.Millisecond}})

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	var last float64
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		j, err := repo.GetJob(started.ID)
		if err != nil {
			t.Fatalf("GetJob() error: %v", err)
		}
		if j.Progress < last {
			t.Fatalf("progress went backwards, %v after %v", j.Progress, last)
		}
		last = j.Progress
		if j.Status.Terminal() {
			if j.Status == job.StatusCompleted && j.Progress != 100 {
				t.Errorf("completed with progress %v, want 100", j.Progress)
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
}

func TestConcurrentJobsAreIndependent(t *testing.T) {
	repo := db.NewMemory()
	providers := testProviders()
	failing := testProviders()
	failing.Script = &mock.Script{Err: &provider.Error{Class: provider.ClassInvalidInput, Message: "prompt rejected"}}

	good := newTestOrchestrator(t, testConfig(), repo, providers)
	bad := newTestOrchestrator(t, testConfig(), repo, failing)

	goodJob, err := good.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	badJob, err := bad.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if j := waitTerminal(t, repo, goodJob.ID); j.Status != job.StatusCompleted {
		t.Errorf("first job status = %q, want completed", j.Status)
	}
	if j := waitTerminal(t, repo, badJob.ID); j.Status != job.StatusFailed {
		t.Errorf("second job status = %q, want failed", j.Status)
	}
}

func TestFinishIgnoresDeletedJob(t *testing.T) {
	repo := db.NewMemory()
	providers := testProviders()
	providers.Script = &mock.Script{Delay: 200 * time.Millisecond}
	o := newTestOrchestrator(t, testConfig(), repo, providers)

	started, err := o.Start(testRequest())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := repo.DeleteJob(started.ID); err != nil {
		t.Fatalf("DeleteJob() error: %v", err)
	}
	o.Cancel(started.ID)

	// The run goroutine must exit cleanly without recreating the record.
	time.Sleep(100 * time.Millisecond)
	if _, err := repo.GetJob(started.ID); err != db.ErrJobNotFound {
		t.Errorf("GetJob() after delete = %v, want ErrJobNotFound", err)
	}
}
