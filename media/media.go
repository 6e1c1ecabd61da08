// Package media holds the typed artifacts the pipeline stages pass to
// each other: the generated script, narrated audio segments, generated
// video segments and merged files.
package media

import "strings"

// ScriptSegment is one narrated scene of the script.
type ScriptSegment struct {
	Text             string  `json:"text"`
	SceneDescription string  `json:"scene_description,omitempty"`
	Start            float64 `json:"start_time"`
	End              float64 `json:"end_time"`
}

// Script is the structured output of the script stage.
type Script struct {
	Title         string          `json:"title"`
	Segments      []ScriptSegment `json:"segments"`
	TotalDuration float64         `json:"total_duration"`
	Summary       string          `json:"summary"`
}

// SceneDescriptions returns one visual description per segment,
// synthesizing one from the narration text when the script writer left
// it out.
func (s *Script) SceneDescriptions() []string {
	scenes := make([]string, 0, len(s.Segments))
	for _, seg := range s.Segments {
		if seg.SceneDescription != "" {
			scenes = append(scenes, seg.SceneDescription)
			continue
		}
		text := seg.Text
		if len(text) > 50 {
			text = strings.TrimSpace(text[:50]) + "..."
		}
		scenes = append(scenes, "Scene showing: "+text)
	}
	return scenes
}

// AudioSegment is one piece of synthesized narration.
type AudioSegment struct {
	URL      string  `json:"audio_url"`
	Text     string  `json:"text"`
	Start    float64 `json:"start_time"`
	End      float64 `json:"end_time"`
	Duration float64 `json:"duration"`
}

// VideoSegment is one generated video clip.
type VideoSegment struct {
	URL              string  `json:"video_url"`
	SceneDescription string  `json:"scene_description"`
	Start            float64 `json:"start_time"`
	End              float64 `json:"end_time"`
	Duration         float64 `json:"duration"`
	BackendUsed      string  `json:"backend_used,omitempty"`
}

// File describes a merged or uploaded media file.
type File struct {
	Path         string  `json:"path,omitempty"`
	URL          string  `json:"url,omitempty"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Size         int64   `json:"file_size,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
}
