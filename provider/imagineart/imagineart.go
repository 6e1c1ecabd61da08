// Package imagineart implements the ImagineArt video generation
// backend.
package imagineart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
)

// Name identifies the imagineart backend by name.
const Name = "imagineart"

func init() {
	err := provider.Register(Name, imagineartFactory)
	if err != nil {
		fmt.Printf("registering imagineart factory: %v", err)
	}
}

func imagineartFactory(cfg *config.Config) (provider.VideoBackend, error) {
	if cfg.ImagineArt == nil || cfg.ImagineArt.APIKey == "" {
		return nil, provider.InvalidConfigError("imagineart: missing api key")
	}
	return &imagineart{cfg: cfg.ImagineArt, client: &http.Client{}}, nil
}

type imagineart struct {
	cfg    *config.ImagineArt
	client *http.Client
}

// ImagineArt, unlike pollo, accepts the full option set per request.
type taskRequest struct {
	Prompt  string      `json:"prompt"`
	Style   string      `json:"style"`
	Options taskOptions `json:"options"`
}

type taskOptions struct {
	Resolution    string `json:"resolution"`
	Length        int    `json:"length"`
	GenerateAudio bool   `json:"generateAudio"`
	Quality       string `json:"quality"`
}

type taskResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

func (p *imagineart) GenerateSegments(ctx context.Context, req provider.SegmentRequest) ([]media.VideoSegment, error) {
	segments := make([]media.VideoSegment, 0, len(req.Scenes))
	for i, scene := range req.Scenes {
		url, err := p.generateOne(ctx, scene, req)
		if err != nil {
			return nil, err
		}
		start := float64(i * req.SecondsPerScene)
		segments = append(segments, media.VideoSegment{
			URL:              url,
			SceneDescription: scene,
			Start:            start,
			End:              start + float64(req.SecondsPerScene),
			Duration:         float64(req.SecondsPerScene),
			BackendUsed:      Name,
		})
	}
	return segments, nil
}

func (p *imagineart) generateOne(ctx context.Context, scene string, req provider.SegmentRequest) (string, error) {
	payload, err := json.Marshal(taskRequest{
		Prompt: scene,
		Style:  string(req.Style),
		Options: taskOptions{
			Resolution:    string(req.Options.Resolution),
			Length:        req.SecondsPerScene,
			GenerateAudio: req.Options.GenerateAudio,
			Quality:       req.Options.Quality,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling task request: %w", err)
	}

	var resp taskResponse
	if err := p.do(ctx, http.MethodPost, "/video/tasks", bytes.NewReader(payload), &resp); err != nil {
		return "", err
	}
	if resp.VideoURL != "" {
		return resp.VideoURL, nil
	}
	if resp.TaskID == "" {
		return "", provider.Errorf(provider.ClassInvalidInput, "imagineart returned neither video url nor task id")
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		var st taskResponse
		if err := p.do(ctx, http.MethodGet, "/video/tasks/"+resp.TaskID, nil, &st); err != nil {
			return "", err
		}
		switch st.Status {
		case "succeeded", "completed":
			return st.VideoURL, nil
		case "failed":
			return "", provider.Errorf(provider.ClassResourceError, "imagineart task %s failed: %s", resp.TaskID, st.Error)
		}
	}
}

func (p *imagineart) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.Endpoint+path, body)
	if err != nil {
		return fmt.Errorf("creating imagineart request: %w", err)
	}
	req.Header.Set("X-Api-Key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.ClassifyTransport(Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading imagineart response: %w", err)
	}
	if err := provider.ClassifyStatus(Name, resp.StatusCode, data); err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *imagineart) Healthcheck() error {
	req, err := http.NewRequest(http.MethodGet, p.cfg.Endpoint+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("imagineart returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *imagineart) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Resolutions:   []string{"720p", "1080p"},
		MaxClipLength: 10,
		Audio:         false,
	}
}
