// Package db defines the job repository contract and its in-memory
// implementation. The repository is the single synchronization point
// between the orchestrator (one writer per job) and status pollers
// (many concurrent readers).
package db

import (
	"errors"

	"github.com/beroca11/video-orchestrator/job"
)

// ErrJobNotFound is returned when the given job id is unknown.
var ErrJobNotFound = errors.New("job not found")

// Repository stores one record per job. A Get always observes a fully
// consistent snapshot, even while an Update for the same job is in
// flight; locking is per job so polling one job never blocks writes to
// another.
type Repository interface {
	CreateJob(j *job.Job) error
	GetJob(id string) (*job.Job, error)
	ListJobs() (map[string]*job.Job, error)
	// UpdateJob applies mutate under the job's lock and returns the
	// resulting snapshot. UpdatedAt is bumped after mutate runs.
	UpdateJob(id string, mutate func(*job.Job)) (*job.Job, error)
	DeleteJob(id string) error
}
