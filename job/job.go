package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending    = Status("pending")
	StatusProcessing = Status("processing")
	StatusCompleted  = Status("completed")
	StatusFailed     = Status("failed")
	StatusCancelled  = Status("cancelled")
)

// Terminal reports whether no further status transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is one end-to-end request to produce a video and the unit of
// status tracking. The orchestrator owning the job is its only writer;
// everyone else reads snapshots from the repository.
type Job struct {
	ID           string    `json:"job_id"`
	Status       Status    `json:"status"`
	Progress     float64   `json:"progress"`
	CurrentStep  string    `json:"current_step"`
	ErrorMessage string    `json:"error_message,omitempty"`
	BackendUsed  string    `json:"backend_used,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Request      Request   `json:"request"`
	Result       *Result   `json:"result,omitempty"`
}

// New creates a pending Job for the given request.
func New(req Request) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New().String(),
		Status:      StatusPending,
		CurrentStep: "Queued",
		CreatedAt:   now,
		UpdatedAt:   now,
		Request:     req,
	}
}

// Clone returns a deep copy of the job, safe to hand to concurrent
// readers while the original keeps being mutated.
func (j *Job) Clone() *Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		if j.Result.Metadata != nil {
			r.Metadata = make(map[string]interface{}, len(j.Result.Metadata))
			for k, v := range j.Result.Metadata {
				r.Metadata[k] = v
			}
		}
		c.Result = &r
	}
	return &c
}

// Touch bumps UpdatedAt, keeping it monotonically non-decreasing.
func (j *Job) Touch() {
	if now := time.Now().UTC(); now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
}
