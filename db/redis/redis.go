// Package redis provides a Repository backed by a redis server, for
// deployments where job records should outlive a single process.
package redis

import (
	"encoding/json"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/db"
	"github.com/beroca11/video-orchestrator/job"
)

const keyPrefix = "job:"

// Records expire eventually so abandoned jobs do not accumulate.
var expiration = 30 * 24 * time.Hour

// Store implements db.Repository on redis. Values are JSON snapshots;
// update atomicity comes from per-job process-local locks, which is
// sufficient because the orchestrator owning a job is its only writer.
type Store struct {
	rc *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore connects to the configured redis server.
func NewStore(cfg *config.Redis) (*Store, error) {
	if cfg == nil {
		cfg = &config.Redis{}
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "6379")
	}
	return &Store{
		rc: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		locks: map[string]*sync.Mutex{},
	}, nil
}

func (s *Store) CreateJob(j *job.Job) error {
	return s.put(j)
}

func (s *Store) GetJob(id string) (*job.Job, error) {
	val, err := s.rc.Get(keyPrefix + id).Result()
	if err == redis.Nil {
		return nil, db.ErrJobNotFound
	} else if err != nil {
		return nil, err
	}
	var j job.Job
	if err := json.Unmarshal([]byte(val), &j); err != nil {
		return nil, errors.Wrap(err, "unmarshaling job record")
	}
	return &j, nil
}

func (s *Store) ListJobs() (map[string]*job.Job, error) {
	out := map[string]*job.Job{}
	iter := s.rc.Scan(0, keyPrefix+"*", 100).Iterator()
	for iter.Next() {
		id := strings.TrimPrefix(iter.Val(), keyPrefix)
		j, err := s.GetJob(id)
		if err == db.ErrJobNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		out[id] = j
	}
	return out, iter.Err()
}

func (s *Store) UpdateJob(id string, mutate func(*job.Job)) (*job.Job, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	j, err := s.GetJob(id)
	if err != nil {
		return nil, err
	}
	mutate(j)
	j.Touch()
	if err := s.put(j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) DeleteJob(id string) error {
	n, err := s.rc.Del(keyPrefix + id).Result()
	if err != nil {
		return errors.Wrap(err, "deleting job record")
	}
	if n == 0 {
		return db.ErrJobNotFound
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) put(j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return errors.Wrap(err, "marshaling job record")
	}
	return s.rc.Set(keyPrefix+j.ID, string(data), expiration).Err()
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
