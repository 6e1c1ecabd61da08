package pollo

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/provider"
)

type mockRoundTripper struct {
	reqAssertion func(*testing.T, *http.Request)
	status       int
	body         string
	t            *testing.T
}

func (m *mockRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if m.reqAssertion != nil {
		m.reqAssertion(m.t, r)
	}
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
	}, nil
}

func testBackend(t *testing.T, rt *mockRoundTripper) *pollo {
	rt.t = t
	return &pollo{
		cfg: &config.Pollo{
			Endpoint:     "http://pollo.test/v1",
			APIKey:       "some-key",
			PollInterval: time.Millisecond,
		},
		client: &http.Client{Transport: rt},
	}
}

func segmentRequest() provider.SegmentRequest {
	return provider.SegmentRequest{
		Scenes:          []string{"a sunset over the ocean", "waves at dusk"},
		SecondsPerScene: 5,
		Style:           job.StyleCinematic,
		Options: job.GenerationOptions{
			Resolution:    job.Resolution1080p,
			GenerateAudio: true,
		},
	}
}

func TestGenerateSegments(t *testing.T) {
	rt := &mockRoundTripper{
		reqAssertion: func(t *testing.T, r *http.Request) {
			if g, e := r.URL.String(), "http://pollo.test/v1/videos/generate"; g != e {
				t.Errorf("wrong url requested, got %q, expected %q", g, e)
			}
			if g, e := r.Header.Get("Authorization"), "Bearer some-key"; g != e {
				t.Errorf("wrong credential sent, got %q, expected %q", g, e)
			}
		},
		body: `{"status":"succeeded","video_url":"https://cdn.pollo.test/clip.mp4"}`,
	}

	segments, err := testBackend(t, rt).GenerateSegments(context.Background(), segmentRequest())
	if err != nil {
		t.Fatalf("GenerateSegments() error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	for _, seg := range segments {
		if seg.URL != "https://cdn.pollo.test/clip.mp4" {
			t.Errorf("segment url = %q", seg.URL)
		}
		if seg.BackendUsed != Name {
			t.Errorf("backend used = %q, want %q", seg.BackendUsed, Name)
		}
		if seg.Duration != 5 {
			t.Errorf("segment duration = %v, want 5", seg.Duration)
		}
	}
	if segments[1].Start != 5 || segments[1].End != 10 {
		t.Errorf("second segment spans [%v, %v], want [5, 10]", segments[1].Start, segments[1].End)
	}
}

func TestGenerateSegmentsRateLimited(t *testing.T) {
	rt := &mockRoundTripper{status: http.StatusTooManyRequests, body: "slow down"}
	_, err := testBackend(t, rt).GenerateSegments(context.Background(), segmentRequest())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := provider.Classify(err); got != provider.ClassRateLimited {
		t.Errorf("error class = %q, want rate_limited", got)
	}
	if !provider.IsRetryable(err) {
		t.Error("rate limited error should be retryable")
	}
}

func TestGenerateSegmentsServerError(t *testing.T) {
	rt := &mockRoundTripper{status: http.StatusInternalServerError, body: "oops something went wrong"}
	_, err := testBackend(t, rt).GenerateSegments(context.Background(), segmentRequest())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	want := "pollo: received non 2xx status code, got 500 with body: oops something went wrong"
	if err.Error() != want {
		t.Errorf("wrong error returned, got: %v, want: %v", err, want)
	}
	if provider.IsRetryable(err) {
		t.Error("server error should not be retryable")
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	_, err := polloFactory(&config.Config{Pollo: &config.Pollo{}})
	if err == nil {
		t.Fatal("expected configuration error, got nil")
	}
	if _, ok := err.(provider.InvalidConfigError); !ok {
		t.Errorf("error type = %T, want provider.InvalidConfigError", err)
	}
}
