// Package pipeline drives a job through the fixed stage sequence
// Script → {Voice ∥ Video} → Edit → Upload, tracking progress in the
// job repository and falling back across video backends.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/db"
	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
	"github.com/beroca11/video-orchestrator/service/exceptions"
)

const (
	stepScript     = "Generating script from prompt"
	stepVoiceVideo = "Generating voice narration and video segments"
	stepEdit       = "Editing and combining video segments"
	stepUpload     = "Uploading final video"
	stepDone       = "Video generation completed successfully"
)

// Providers bundles the capabilities the orchestrator calls.
type Providers struct {
	Script   provider.ScriptGenerator
	Voice    provider.VoiceSynthesizer
	Editor   provider.Editor
	Uploader provider.Uploader
}

// Orchestrator owns every running job: it is the single writer of a
// job's record, everything else observes repository snapshots.
type Orchestrator struct {
	cfg       *config.Config
	weights   config.Weights
	repo      db.Repository
	selector  *Selector
	providers Providers
	log       *logrus.Logger
	reporter  exceptions.Reporter

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds an Orchestrator. The stage weights come from cfg and must
// sum to 100.
func New(cfg *config.Config, repo db.Repository, selector *Selector, providers Providers, log *logrus.Logger, reporter exceptions.Reporter) (*Orchestrator, error) {
	weights, err := cfg.ParseWeights()
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = &exceptions.NoopReporter{}
	}
	return &Orchestrator{
		cfg:       cfg,
		weights:   weights,
		repo:      repo,
		selector:  selector,
		providers: providers,
		log:       log,
		reporter:  reporter,
		cancels:   map[string]context.CancelFunc{},
	}, nil
}

// Start accepts a validated request, records a pending job and runs
// its pipeline in the background.
func (o *Orchestrator) Start(req job.Request) (*job.Job, error) {
	j := job.New(req)
	if err := o.repo.CreateJob(j); err != nil {
		return nil, fmt.Errorf("creating job record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JobTimeout)
	o.mu.Lock()
	o.cancels[j.ID] = cancel
	o.mu.Unlock()

	go o.run(ctx, j.ID, req)
	return j, nil
}

// Cancel requests cooperative cancellation of a running job. It
// reports whether the job was still running.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[id]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (o *Orchestrator) run(ctx context.Context, id string, req job.Request) {
	defer func() {
		o.mu.Lock()
		cancel := o.cancels[id]
		delete(o.cancels, id)
		o.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}()
	log := o.log.WithField("job_id", id)

	o.update(id, func(j *job.Job) {
		j.Status = job.StatusProcessing
		j.CurrentStep = stepScript
	})

	// Script
	var script *media.Script
	err := o.withRetry(ctx, func(c context.Context) error {
		var serr error
		script, serr = o.providers.Script.GenerateScript(c, provider.ScriptRequest{
			Prompt:   req.Prompt,
			Style:    req.Style,
			Duration: req.Duration,
			Language: req.Language,
		})
		return serr
	})
	if err != nil {
		o.finish(ctx, id, fmt.Errorf("script stage: %w", err))
		return
	}
	log.WithField("segments", len(script.Segments)).Info("script generated")
	o.advance(id, o.weights.Script, stepVoiceVideo)

	// Voice and Video only depend on the script and run concurrently.
	var (
		wg          sync.WaitGroup
		audio       []media.AudioSegment
		video       []media.VideoSegment
		backendUsed string
		voiceErr    error
		videoErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		voiceErr = o.withRetry(ctx, func(c context.Context) error {
			var verr error
			audio, verr = o.providers.Voice.Synthesize(c, script, req.VoiceStyle, req.Language)
			return verr
		})
		if voiceErr == nil {
			o.advance(id, o.weights.Voice, "")
		}
	}()
	go func() {
		defer wg.Done()
		video, backendUsed, videoErr = o.selector.Generate(ctx, req.Backend, provider.SegmentRequest{
			Scenes:          script.SceneDescriptions(),
			SecondsPerScene: req.Options.SegmentLength,
			Style:           req.Style,
			Options:         req.Options,
		})
		if videoErr == nil {
			used := backendUsed
			o.update(id, func(j *job.Job) {
				j.Progress += o.weights.Video
				j.BackendUsed = used
			})
		}
	}()
	wg.Wait()

	if videoErr != nil {
		o.finish(ctx, id, fmt.Errorf("video stage: %w", videoErr))
		return
	}
	if voiceErr != nil {
		o.finish(ctx, id, fmt.Errorf("voice stage: %w", voiceErr))
		return
	}
	log.WithFields(logrus.Fields{"backend": backendUsed, "clips": len(video)}).Info("voice and video generated")

	// Cancellation checkpoint between stage boundaries.
	if err := ctx.Err(); err != nil {
		o.finish(ctx, id, err)
		return
	}
	o.update(id, func(j *job.Job) { j.CurrentStep = stepEdit })

	// Edit
	var merged *media.File
	err = o.withRetry(ctx, func(c context.Context) error {
		var merr error
		merged, merr = o.providers.Editor.Merge(c, video, audio)
		return merr
	})
	if err != nil {
		o.finish(ctx, id, fmt.Errorf("edit stage: %w", err))
		return
	}
	o.advance(id, o.weights.Edit, stepUpload)

	// Upload
	var uploaded *provider.Upload
	err = o.withRetry(ctx, func(c context.Context) error {
		var uerr error
		uploaded, uerr = o.providers.Uploader.Upload(c, merged)
		return uerr
	})
	if err != nil {
		o.finish(ctx, id, fmt.Errorf("upload stage: %w", err))
		return
	}

	result := &job.Result{
		VideoURL:     uploaded.URL,
		ThumbnailURL: uploaded.ThumbnailURL,
		Duration:     merged.Duration,
		FileSize:     uploaded.Size,
		CreatedAt:    time.Now().UTC(),
		BackendUsed:  backendUsed,
		Metadata: map[string]interface{}{
			"script_segments":    len(script.Segments),
			"video_segments":     len(video),
			"voice_segments":     len(audio),
			"style":              string(req.Style),
			"voice_style":        string(req.VoiceStyle),
			"generation_options": req.Options,
		},
	}
	o.update(id, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Progress = 100
		j.CurrentStep = stepDone
		j.Result = result
	})
	log.Info("video generation completed")
}

// withRetry runs fn up to the configured attempt count, backing off
// exponentially between retryable failures. Each attempt gets its own
// call timeout, and cancellation is checked before every attempt.
func (o *Orchestrator) withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := Backoff{Initial: o.cfg.RetryBackoff, Max: o.cfg.RetryBackoffMax}
	attempts := o.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if attempt > 0 {
			if serr := sleepCtx(ctx, backoff.Duration(attempt-1)); serr != nil {
				return serr
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if o.cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		}
		err = fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if !provider.IsRetryable(err) {
			return err
		}
	}
	return err
}

// advance adds a completed stage's weight and moves the label to the
// next stage. An empty step leaves the label alone.
func (o *Orchestrator) advance(id string, weight float64, step string) {
	o.update(id, func(j *job.Job) {
		j.Progress += weight
		if step != "" {
			j.CurrentStep = step
		}
	})
}

// update applies a mutation unless the job already reached a terminal
// state. A missing record means the job was deleted mid-flight, which
// is fine: the cancelled run just stops writing.
func (o *Orchestrator) update(id string, mutate func(*job.Job)) {
	_, err := o.repo.UpdateJob(id, func(j *job.Job) {
		if j.Status.Terminal() {
			return
		}
		mutate(j)
	})
	if err != nil && !errors.Is(err, db.ErrJobNotFound) {
		o.log.WithField("job_id", id).WithError(err).Error("updating job record")
	}
}

// finish records the terminal state of a failed or cancelled run.
func (o *Orchestrator) finish(ctx context.Context, id string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		o.log.WithField("job_id", id).Info("job cancelled")
		o.update(id, func(j *job.Job) {
			j.Status = job.StatusCancelled
			j.CurrentStep = "Cancelled"
		})
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		msg := fmt.Sprintf("job timed out after %s", o.cfg.JobTimeout)
		o.log.WithField("job_id", id).Error(msg)
		o.update(id, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.ErrorMessage = msg
			j.CurrentStep = "Failed"
		})
	default:
		o.log.WithField("job_id", id).WithError(err).Error("video generation failed")
		o.reporter.ReportJobException(id, err)
		o.update(id, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.ErrorMessage = err.Error()
			j.CurrentStep = "Failed"
		})
	}
}
