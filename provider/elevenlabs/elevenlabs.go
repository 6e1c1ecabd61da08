// Package elevenlabs synthesizes narration audio through the ElevenLabs
// text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
)

const name = "elevenlabs"

// Stock voice ids matched to the narration styles.
var voiceIDs = map[job.VoiceStyle]string{
	job.VoiceNarrative:      "21m00Tcm4TlvDq8ikWAM",
	job.VoiceConversational: "AZnzlk1XvdvUeBnXmlld",
	job.VoiceProfessional:   "EXAVITQu4vr4xnSDxMaL",
	job.VoiceCasual:         "VR6AewLTigWG4xSOukaG",
	job.VoiceDramatic:       "pNInz6obpgDQGcFmaJgB",
}

// Synthesizer narrates scripts segment by segment, writing each audio
// clip under Dir. It satisfies provider.VoiceSynthesizer.
type Synthesizer struct {
	cfg    *config.ElevenLabs
	Dir    string
	client *http.Client
}

// New builds a Synthesizer from configuration.
func New(cfg *config.ElevenLabs, dir string) (*Synthesizer, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, provider.InvalidConfigError("elevenlabs: missing api key")
	}
	return &Synthesizer{cfg: cfg, Dir: dir, client: &http.Client{}}, nil
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, script *media.Script, style job.VoiceStyle, language string) ([]media.AudioSegment, error) {
	voiceID, ok := voiceIDs[style]
	if !ok {
		voiceID = voiceIDs[job.VoiceNarrative]
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, provider.Errorf(provider.ClassResourceError, "creating audio dir: %v", err)
	}

	segments := make([]media.AudioSegment, 0, len(script.Segments))
	for i, seg := range script.Segments {
		path := filepath.Join(s.Dir, fmt.Sprintf("voice_segment_%d.mp3", i))
		if err := s.speak(ctx, voiceID, seg.Text, language, path); err != nil {
			return nil, err
		}
		segments = append(segments, media.AudioSegment{
			URL:      path,
			Text:     seg.Text,
			Start:    seg.Start,
			End:      seg.End,
			Duration: seg.End - seg.Start,
		})
	}
	return segments, nil
}

func (s *Synthesizer) speak(ctx context.Context, voiceID, text, language, path string) error {
	model := "eleven_monolingual_v1"
	if language != "en" {
		model = "eleven_multilingual_v2"
	}
	payload, err := json.Marshal(ttsRequest{Text: text, ModelID: model})
	if err != nil {
		return fmt.Errorf("marshaling tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.Endpoint+"/text-to-speech/"+voiceID, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating tts request: %w", err)
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return provider.ClassifyTransport(name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return provider.ClassifyStatus(name, resp.StatusCode, data)
	}

	f, err := os.Create(path)
	if err != nil {
		return provider.Errorf(provider.ClassResourceError, "creating audio file: %v", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return provider.Errorf(provider.ClassResourceError, "writing audio file: %v", err)
	}
	return nil
}
