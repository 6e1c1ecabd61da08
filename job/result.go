package job

import (
	"errors"
	"time"
)

// ErrNotReady is returned when a result is requested before the job
// reached the completed status.
var ErrNotReady = errors.New("job result not ready")

// Result is the finished video. It is produced exactly once, by the
// upload stage, and never mutated afterwards.
type Result struct {
	VideoURL     string                 `json:"video_url"`
	ThumbnailURL string                 `json:"thumbnail_url,omitempty"`
	Duration     float64                `json:"duration"`
	FileSize     int64                  `json:"file_size,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	BackendUsed  string                 `json:"backend_used,omitempty"`
}
