package db

import (
	"sync"
	"testing"

	"github.com/beroca11/video-orchestrator/job"
)

func newJob(t *testing.T) *job.Job {
	t.Helper()
	req := job.Request{Prompt: "test prompt"}
	req.ApplyDefaults()
	return job.New(req)
}

func TestMemoryCreateGet(t *testing.T) {
	m := NewMemory()
	j := newJob(t)
	if err := m.CreateJob(j); err != nil {
		t.Fatalf("CreateJob() error: %v", err)
	}

	got, err := m.GetJob(j.ID)
	if err != nil {
		t.Fatalf("GetJob() error: %v", err)
	}
	if got.ID != j.ID || got.Status != job.StatusPending {
		t.Errorf("GetJob() = %+v, want id %s pending", got, j.ID)
	}
}

func TestMemoryGetUnknown(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetJob("nope"); err != ErrJobNotFound {
		t.Errorf("GetJob() error = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryDeleteUnknown(t *testing.T) {
	m := NewMemory()
	if err := m.DeleteJob("nope"); err != ErrJobNotFound {
		t.Errorf("DeleteJob() error = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryUpdateSnapshotConsistency(t *testing.T) {
	m := NewMemory()
	j := newJob(t)
	if err := m.CreateJob(j); err != nil {
		t.Fatal(err)
	}

	updated, err := m.UpdateJob(j.ID, func(j *job.Job) {
		j.Status = job.StatusProcessing
		j.Progress = 10
	})
	if err != nil {
		t.Fatalf("UpdateJob() error: %v", err)
	}
	if updated.Status != job.StatusProcessing || updated.Progress != 10 {
		t.Errorf("UpdateJob() snapshot = %v %v, want processing 10", updated.Status, updated.Progress)
	}

	// Mutating the returned snapshot must not affect the stored record.
	updated.Progress = 99
	got, _ := m.GetJob(j.ID)
	if got.Progress != 10 {
		t.Errorf("snapshot mutation leaked into store: progress %v", got.Progress)
	}
}

func TestMemoryUpdatedAtMonotonic(t *testing.T) {
	m := NewMemory()
	j := newJob(t)
	if err := m.CreateJob(j); err != nil {
		t.Fatal(err)
	}
	prev := j.UpdatedAt
	for i := 0; i < 10; i++ {
		got, err := m.UpdateJob(j.ID, func(j *job.Job) { j.Progress++ })
		if err != nil {
			t.Fatal(err)
		}
		if got.UpdatedAt.Before(prev) {
			t.Fatalf("UpdatedAt went backwards: %v -> %v", prev, got.UpdatedAt)
		}
		prev = got.UpdatedAt
	}
}

func TestMemoryConcurrentReadersAndWriter(t *testing.T) {
	m := NewMemory()
	j := newJob(t)
	if err := m.CreateJob(j); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = m.UpdateJob(j.ID, func(j *job.Job) {
				j.Progress++
				j.CurrentStep = "step"
			})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				got, err := m.GetJob(j.ID)
				if err != nil {
					t.Error(err)
					return
				}
				// A snapshot mid-update would tear progress and step.
				if got.Progress > 0 && got.CurrentStep == "" {
					t.Error("observed partially updated record")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMemoryPerJobIsolation(t *testing.T) {
	m := NewMemory()
	a, b := newJob(t), newJob(t)
	if err := m.CreateJob(a); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateJob(b); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = m.UpdateJob(a.ID, func(j *job.Job) { j.Progress++ })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = m.UpdateJob(b.ID, func(j *job.Job) { j.Progress++ })
		}
	}()
	wg.Wait()

	gotA, _ := m.GetJob(a.ID)
	gotB, _ := m.GetJob(b.ID)
	if gotA.Progress != 500 || gotB.Progress != 500 {
		t.Errorf("progress = %v/%v, want 500/500", gotA.Progress, gotB.Progress)
	}
}

func TestMemoryList(t *testing.T) {
	m := NewMemory()
	a, b := newJob(t), newJob(t)
	_ = m.CreateJob(a)
	_ = m.CreateJob(b)

	jobs, err := m.ListJobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("ListJobs() returned %d jobs, want 2", len(jobs))
	}
	if _, ok := jobs[a.ID]; !ok {
		t.Errorf("ListJobs() missing job %s", a.ID)
	}

	if err := m.DeleteJob(a.ID); err != nil {
		t.Fatal(err)
	}
	jobs, _ = m.ListJobs()
	if len(jobs) != 1 {
		t.Errorf("ListJobs() after delete returned %d jobs, want 1", len(jobs))
	}
}
