// Package scriptgen writes narration scripts through a chat-completion
// API.
package scriptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
)

const name = "scriptgen"

const systemPrompt = `You are a video script writer. Respond with JSON only:
{"title": "...", "summary": "...", "segments": [{"text": "...", "scene_description": "...", "start_time": 0, "end_time": 5}]}
Each segment narrates one scene. Segment times must cover the requested duration exactly.`

// Writer generates scripts. It satisfies provider.ScriptGenerator.
type Writer struct {
	cfg    *config.Script
	client *http.Client
}

// New builds a Writer from configuration.
func New(cfg *config.Script) (*Writer, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, provider.InvalidConfigError("scriptgen: missing api key")
	}
	return &Writer{cfg: cfg, client: &http.Client{}}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (w *Writer) GenerateScript(ctx context.Context, req provider.ScriptRequest) (*media.Script, error) {
	user := fmt.Sprintf(
		"Write a %d second %s style narration script in language %q for: %s",
		req.Duration, req.Style, req.Language, req.Prompt,
	)
	payload, err := json.Marshal(chatRequest{
		Model: w.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.Endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	hreq.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(hreq)
	if err != nil {
		return nil, provider.ClassifyTransport(name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading chat response: %w", err)
	}
	if err := provider.ClassifyStatus(name, resp.StatusCode, data); err != nil {
		return nil, err
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("parsing chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, provider.Errorf(provider.ClassInvalidInput, "chat response has no choices")
	}
	return parseScript(chat.Choices[0].Message.Content, req.Duration)
}

// parseScript decodes the model output, tolerating a markdown fence
// around the JSON.
func parseScript(content string, duration int) (*media.Script, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var script media.Script
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &script); err != nil {
		return nil, provider.Errorf(provider.ClassInvalidInput, "parsing generated script: %v", err)
	}
	if len(script.Segments) == 0 {
		return nil, provider.Errorf(provider.ClassInvalidInput, "generated script has no segments")
	}
	if script.TotalDuration == 0 {
		script.TotalDuration = float64(duration)
	}
	return &script, nil
}
