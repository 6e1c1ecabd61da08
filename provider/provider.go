// Package provider defines the capability contracts the orchestrator
// calls: script generation, voice synthesis, video generation, editing
// and upload. Video backends are pluggable and register themselves in a
// package-level registry.
package provider

import (
	"context"
	"errors"
	"sort"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/media"
)

var backends = map[string]Factory{}

var (
	ErrRegistered = errors.New("backend is already registered")
	ErrNotFound   = errors.New("backend not found")
)

// ScriptRequest carries the inputs of the script stage.
type ScriptRequest struct {
	Prompt   string
	Style    job.VideoStyle
	Duration int
	Language string
}

// ScriptGenerator turns a prompt into a structured narration script.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, req ScriptRequest) (*media.Script, error)
}

// VoiceSynthesizer narrates a script, one audio segment per script
// segment.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, script *media.Script, style job.VoiceStyle, language string) ([]media.AudioSegment, error)
}

// SegmentRequest carries the inputs of one video generation call.
type SegmentRequest struct {
	// Scenes holds one visual description per clip to generate.
	Scenes []string
	// SecondsPerScene is the target clip length.
	SecondsPerScene int
	Style           job.VideoStyle
	Options         job.GenerationOptions
}

// VideoBackend generates video clips. Implementations are
// interchangeable; the selector drives retry and fallback across them.
type VideoBackend interface {
	GenerateSegments(ctx context.Context, req SegmentRequest) ([]media.VideoSegment, error)

	// Healthcheck should return nil if the backend is currently able
	// to generate videos, otherwise an error explaining what's going
	// on.
	Healthcheck() error

	// Capabilities describes what the backend supports.
	Capabilities() Capabilities
}

// Editor merges generated clips with the narration track.
type Editor interface {
	Merge(ctx context.Context, video []media.VideoSegment, audio []media.AudioSegment) (*media.File, error)
}

// Upload is the outcome of pushing a file to public storage.
type Upload struct {
	URL          string
	ThumbnailURL string
	Size         int64
}

// Uploader pushes the merged file to public storage.
type Uploader interface {
	Upload(ctx context.Context, f *media.File) (*Upload, error)
}

// Factory is the function responsible for creating the instance of a
// video backend.
type Factory func(cfg *config.Config) (VideoBackend, error)

// InvalidConfigError is returned if a backend could not be configured
// properly.
type InvalidConfigError string

func (err InvalidConfigError) Error() string {
	return string(err)
}

// Capabilities describes the capabilities of a video backend.
type Capabilities struct {
	Resolutions   []string `json:"resolutions"`
	MaxClipLength int      `json:"max_clip_seconds"`
	Audio         bool     `json:"audio"`
}

// Health is the reported health state of a backend.
type Health struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Description describes a registered backend, its capabilities and its
// current health state.
type Description struct {
	Name         string       `json:"name"`
	Enabled      bool         `json:"enabled"`
	Capabilities Capabilities `json:"capabilities,omitempty"`
	Health       Health       `json:"health,omitempty"`
}

// Register adds a new backend to the internal registry.
func Register(name string, factory Factory) error {
	if _, ok := backends[name]; ok {
		return ErrRegistered
	}
	backends[name] = factory
	return nil
}

// GetFactory looks up the registry and returns the factory function for
// the given backend name, if it's available.
func GetFactory(name string) (Factory, error) {
	factory, ok := backends[name]
	if !ok {
		return nil, ErrNotFound
	}
	return factory, nil
}

// List returns the names of the registered backends that can be
// configured from cfg, alphabetically ordered.
func List(cfg *config.Config) []string {
	names := make([]string, 0, len(backends))
	for name, factory := range backends {
		if _, err := factory(cfg); err == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Describe describes the given backend, including its capabilities and
// current health state.
func Describe(name string, cfg *config.Config) (*Description, error) {
	factory, err := GetFactory(name)
	if err != nil {
		return nil, err
	}
	description := Description{Name: name}
	backend, err := factory(cfg)
	if err != nil {
		return &description, nil
	}
	description.Enabled = true
	description.Capabilities = backend.Capabilities()
	description.Health = Health{OK: true}
	if err = backend.Healthcheck(); err != nil {
		description.Health = Health{OK: false, Message: err.Error()}
	}
	return &description, nil
}
