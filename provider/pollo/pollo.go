// Package pollo implements the Pollo video generation backend.
package pollo

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

// Name identifies the pollo backend by name.
const Name = "pollo"

func init() {
	err := provider.Register(Name, polloFactory)
	if err != nil {
		fmt.Printf("registering pollo factory: %v", err)
	}
}

func polloFactory(cfg *config.Config) (provider.VideoBackend, error) {
	if cfg.Pollo == nil || cfg.Pollo.APIKey == "" {
		return nil, provider.InvalidConfigError("pollo: missing api key")
	}
	return &pollo{cfg: cfg.Pollo, client: &http.Client{}}, nil
}

type pollo struct {
	cfg    *config.Pollo
	client *http.Client
}

type generateRequest struct {
	Prompt     string `json:"prompt"`
	Length     int    `json:"length"`
	Resolution string `json:"resolution"`
	Audio      bool   `json:"generateAudio"`
}

type generateResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Message  string `json:"message"`
}

var stylePrompts = map[string]string{
	"cinematic":   "Cinematic shot, dramatic lighting, professional cinematography: ",
	"documentary": "Documentary style, natural lighting, realistic footage: ",
	"animated":    "Animated style, vibrant colors, smooth motion: ",
	"realistic":   "Photorealistic, high detail, natural colors: ",
	"artistic":    "Artistic interpretation, creative composition, stylized: ",
}

func (p *pollo) GenerateSegments(ctx context.Context, req provider.SegmentRequest) ([]media.VideoSegment, error) {
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

func (p *pollo) generateOne(ctx context.Context, scene string, req provider.SegmentRequest) (string, error) {
	prefix := stylePrompts[string(req.Style)]
	if prefix == "" {
		prefix = stylePrompts["cinematic"]
	}
	payload, err := json.Marshal(generateRequest{
		Prompt:     prefix + scene,
		Length:     req.SecondsPerScene,
		Resolution: string(req.Options.Resolution),
		Audio:      req.Options.GenerateAudio,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling generation request: %w", err)
	}

	var resp generateResponse
	err = p.do(ctx, http.MethodPost, "/videos/generate", bytes.NewReader(payload), &resp)
	if err != nil {
		return "", err
	}
	if resp.VideoURL != "" {
		return resp.VideoURL, nil
	}
	return p.await(ctx, resp.TaskID)
}

// await polls the generation task until it finishes.
func (p *pollo) await(ctx context.Context, taskID string) (string, error) {
	if taskID == "" {
		return "", provider.Errorf(provider.ClassInvalidInput, "pollo returned neither video url nor task id")
	}
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		var resp generateResponse
		if err := p.do(ctx, http.MethodGet, "/videos/"+taskID, nil, &resp); err != nil {
			return "", err
		}
		switch resp.Status {
		case "succeeded", "completed":
			return resp.VideoURL, nil
		case "failed":
			return "", provider.Errorf(provider.ClassResourceError, "pollo task %s failed: %s", taskID, resp.Message)
		}
	}
}

func (p *pollo) Healthcheck() error {
	req, err := http.NewRequest(http.MethodGet, p.cfg.Endpoint+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pollo returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *pollo) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Resolutions:   []string{"720p", "1080p", "4k"},
		MaxClipLength: 10,
		Audio:         true,
	}
}

func (p *pollo) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.Endpoint+path, body)
	if err != nil {
		return fmt.Errorf("creating pollo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.ClassifyTransport(Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading pollo response: %w", err)
	}
	if err := provider.ClassifyStatus(Name, resp.StatusCode, data); err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
