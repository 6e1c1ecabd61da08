// Package mock provides deterministic stand-ins for every provider
// contract, used for testing and for running without external
// credentials. Latency and failures are injectable.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
)

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Script is a deterministic ScriptGenerator.
type Script struct {
	Delay time.Duration
	Err   error
}

func (s *Script) GenerateScript(ctx context.Context, req provider.ScriptRequest) (*media.Script, error) {
	if err := wait(ctx, s.Delay); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	const segmentSeconds = 5
	n := req.Duration / segmentSeconds
	if n < 1 {
		n = 1
	}
	segments := make([]media.ScriptSegment, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, media.ScriptSegment{
			Text:             fmt.Sprintf("Narration part %d about %s.", i+1, req.Prompt),
			SceneDescription: fmt.Sprintf("Scene %d, %s style: %s", i+1, req.Style, req.Prompt),
			Start:            float64(i * segmentSeconds),
			End:              float64((i + 1) * segmentSeconds),
		})
	}
	return &media.Script{
		Title:         "Mock script: " + req.Prompt,
		Segments:      segments,
		TotalDuration: float64(n * segmentSeconds),
		Summary:       "Mock summary for " + req.Prompt,
	}, nil
}

// Voice is a deterministic VoiceSynthesizer.
type Voice struct {
	Delay time.Duration
	Err   error
}

func (v *Voice) Synthesize(ctx context.Context, script *media.Script, style job.VoiceStyle, language string) ([]media.AudioSegment, error) {
	if err := wait(ctx, v.Delay); err != nil {
		return nil, err
	}
	if v.Err != nil {
		return nil, v.Err
	}
	segments := make([]media.AudioSegment, 0, len(script.Segments))
	for i, seg := range script.Segments {
		segments = append(segments, media.AudioSegment{
			URL:      fmt.Sprintf("https://mock-audio-storage.local/%s/segment_%d.mp3", language, i),
			Text:     seg.Text,
			Start:    seg.Start,
			End:      seg.End,
			Duration: seg.End - seg.Start,
		})
	}
	return segments, nil
}

// Backend is a scriptable VideoBackend: the first FailTimes calls fail
// with Failure, later calls succeed after Delay.
type Backend struct {
	Name      string
	Delay     time.Duration
	FailTimes int
	// Failure is the injected error; defaults to a retryable rate
	// limit carrying the backend name.
	Failure error

	mu    sync.Mutex
	calls int
}

// Calls reports how many times GenerateSegments ran.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *Backend) GenerateSegments(ctx context.Context, req provider.SegmentRequest) ([]media.VideoSegment, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()

	if err := wait(ctx, b.Delay); err != nil {
		return nil, err
	}
	if b.FailTimes < 0 || (b.FailTimes > 0 && n <= b.FailTimes) {
		if b.Failure != nil {
			return nil, b.Failure
		}
		return nil, &provider.Error{Class: provider.ClassRateLimited, Backend: b.Name, Message: "injected failure"}
	}

	segments := make([]media.VideoSegment, 0, len(req.Scenes))
	for i, scene := range req.Scenes {
		start := float64(i * req.SecondsPerScene)
		segments = append(segments, media.VideoSegment{
			URL:              fmt.Sprintf("https://mock-video-storage.local/%s/segment_%d.mp4", b.Name, i),
			SceneDescription: scene,
			Start:            start,
			End:              start + float64(req.SecondsPerScene),
			Duration:         float64(req.SecondsPerScene),
			BackendUsed:      b.Name,
		})
	}
	return segments, nil
}

func (b *Backend) Healthcheck() error { return nil }

func (b *Backend) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Resolutions:   []string{"720p", "1080p", "4k"},
		MaxClipLength: 10,
		Audio:         true,
	}
}

// Editor is a deterministic Editor.
type Editor struct {
	Delay time.Duration
	Err   error
}

func (e *Editor) Merge(ctx context.Context, video []media.VideoSegment, audio []media.AudioSegment) (*media.File, error) {
	if err := wait(ctx, e.Delay); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}
	var duration float64
	for _, seg := range video {
		duration += seg.Duration
	}
	return &media.File{
		Path:     "/tmp/mock/final.mp4",
		Size:     int64(duration * (1 << 20)),
		Duration: duration,
	}, nil
}

// Uploader is a deterministic Uploader.
type Uploader struct {
	Delay time.Duration
	Err   error
}

func (u *Uploader) Upload(ctx context.Context, f *media.File) (*provider.Upload, error) {
	if err := wait(ctx, u.Delay); err != nil {
		return nil, err
	}
	if u.Err != nil {
		return nil, u.Err
	}
	return &provider.Upload{
		URL:          "https://mock-video-storage.local/final.mp4",
		ThumbnailURL: "https://mock-video-storage.local/final_thumb.jpg",
		Size:         f.Size,
	}, nil
}
