package db

import (
	"sync"

	"github.com/beroca11/video-orchestrator/job"
)

// Memory is an in-process Repository. The outer lock only guards the
// map; each record carries its own lock so readers of job A never
// contend with the writer of job B.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]*record
}

type record struct {
	mu  sync.RWMutex
	job *job.Job
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{jobs: map[string]*record{}}
}

func (m *Memory) CreateJob(j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = &record{job: j.Clone()}
	return nil
}

func (m *Memory) GetJob(id string) (*job.Job, error) {
	rec, err := m.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.job.Clone(), nil
}

func (m *Memory) ListJobs() (map[string]*job.Job, error) {
	m.mu.RLock()
	recs := make(map[string]*record, len(m.jobs))
	for id, rec := range m.jobs {
		recs[id] = rec
	}
	m.mu.RUnlock()

	out := make(map[string]*job.Job, len(recs))
	for id, rec := range recs {
		rec.mu.RLock()
		out[id] = rec.job.Clone()
		rec.mu.RUnlock()
	}
	return out, nil
}

func (m *Memory) UpdateJob(id string, mutate func(*job.Job)) (*job.Job, error) {
	rec, err := m.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	mutate(rec.job)
	rec.job.Touch()
	return rec.job.Clone(), nil
}

func (m *Memory) DeleteJob(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *Memory) record(id string) (*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return rec, nil
}
