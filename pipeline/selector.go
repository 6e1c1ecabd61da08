package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
)

// ErrBackendExhausted is returned when every configured video backend
// failed after its retry budget.
var ErrBackendExhausted = errors.New("all video backends exhausted")

// Candidate pairs a backend name with its instance.
type Candidate struct {
	Name    string
	Backend provider.VideoBackend
}

// Selector drives retry and fallback across video backends. An
// explicit backend preference pins the stage to that backend; the auto
// preference walks Candidates in order, giving each its attempt budget
// before moving on.
type Selector struct {
	Candidates []Candidate
	// Attempts per candidate.
	Attempts int
	Backoff  Backoff
	// CallTimeout bounds one generation call, CandidateBudget the
	// total time spent on one candidate.
	CallTimeout     time.Duration
	CandidateBudget time.Duration

	Log logrus.FieldLogger
}

// Generate runs the video stage and returns the segments plus the name
// of the backend that produced them.
func (s *Selector) Generate(ctx context.Context, preference string, req provider.SegmentRequest) ([]media.VideoSegment, string, error) {
	if preference != "" && preference != job.BackendAuto {
		c, err := s.candidate(preference)
		if err != nil {
			return nil, "", err
		}
		segments, err := s.tryCandidate(ctx, c, req)
		if err != nil {
			return nil, "", fmt.Errorf("backend %s: %w", c.Name, err)
		}
		return segments, c.Name, nil
	}

	var lastErr error
	for _, c := range s.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		segments, err := s.tryCandidate(ctx, c, req)
		if err == nil {
			return segments, c.Name, nil
		}
		lastErr = err
		if s.Log != nil {
			s.Log.WithField("backend", c.Name).WithError(err).Warn("video backend exhausted, falling back")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if lastErr == nil {
		return nil, "", ErrBackendExhausted
	}
	return nil, "", fmt.Errorf("%w: last error: %v", ErrBackendExhausted, lastErr)
}

// tryCandidate runs up to Attempts generation calls against one
// backend, backing off between retryable failures. A non-retryable
// failure ends the candidate immediately.
func (s *Selector) tryCandidate(ctx context.Context, c Candidate, req provider.SegmentRequest) ([]media.VideoSegment, error) {
	budgetCtx := ctx
	if s.CandidateBudget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, s.CandidateBudget)
		defer cancel()
	}

	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if cerr := budgetCtx.Err(); cerr != nil {
			return nil, cerr
		}
		if attempt > 0 {
			if serr := sleepCtx(budgetCtx, s.Backoff.Duration(attempt-1)); serr != nil {
				return nil, serr
			}
		}

		callCtx := budgetCtx
		var cancel context.CancelFunc
		if s.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(budgetCtx, s.CallTimeout)
		}
		var segments []media.VideoSegment
		segments, err = c.Backend.GenerateSegments(callCtx, req)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return segments, nil
		}
		if !provider.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, err
}

func (s *Selector) candidate(name string) (Candidate, error) {
	for _, c := range s.Candidates {
		if c.Name == name {
			return c, nil
		}
	}
	return Candidate{}, fmt.Errorf("%w: %s", provider.ErrNotFound, name)
}
