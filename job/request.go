package job

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest marks request validation failures. They are
// rejected before a job exists and never retried.
var ErrInvalidRequest = errors.New("invalid request")

// VideoStyle selects the visual treatment of the generated segments.
type VideoStyle string

const (
	StyleCinematic   = VideoStyle("cinematic")
	StyleDocumentary = VideoStyle("documentary")
	StyleAnimated    = VideoStyle("animated")
	StyleRealistic   = VideoStyle("realistic")
	StyleArtistic    = VideoStyle("artistic")
)

// VoiceStyle selects the narration voice.
type VoiceStyle string

const (
	VoiceNarrative      = VoiceStyle("narrative")
	VoiceConversational = VoiceStyle("conversational")
	VoiceProfessional   = VoiceStyle("professional")
	VoiceCasual         = VoiceStyle("casual")
	VoiceDramatic       = VoiceStyle("dramatic")
)

// Resolution of the generated video.
type Resolution string

const (
	Resolution720p  = Resolution("720p")
	Resolution1080p = Resolution("1080p")
	Resolution4K    = Resolution("4k")
)

// BackendAuto asks the selector to walk the configured backends in
// order instead of pinning one.
const BackendAuto = "auto"

// GenerationOptions tune the video backend.
type GenerationOptions struct {
	Resolution    Resolution `json:"resolution" validate:"omitempty,oneof=720p 1080p 4k"`
	SegmentLength int        `json:"length" validate:"omitempty,min=3,max=10"`
	GenerateAudio bool       `json:"generate_audio"`
	Quality       string     `json:"quality" validate:"omitempty,oneof=standard high"`
}

// Request is the originating video request. It is immutable once
// attached to a Job.
type Request struct {
	Prompt     string            `json:"prompt" validate:"required,max=2000"`
	Style      VideoStyle        `json:"style" validate:"omitempty,oneof=cinematic documentary animated realistic artistic"`
	VoiceStyle VoiceStyle        `json:"voice_style" validate:"omitempty,oneof=narrative conversational professional casual dramatic"`
	Duration   int               `json:"duration" validate:"min=10,max=120"`
	Language   string            `json:"language"`
	Backend    string            `json:"backend"`
	Options    GenerationOptions `json:"video_options"`
}

var validate = validator.New()

// ApplyDefaults fills the zero-valued optional fields the same way the
// API documents them.
func (r *Request) ApplyDefaults() {
	if r.Style == "" {
		r.Style = StyleCinematic
	}
	if r.VoiceStyle == "" {
		r.VoiceStyle = VoiceNarrative
	}
	if r.Duration == 0 {
		r.Duration = 30
	}
	if r.Language == "" {
		r.Language = "en"
	}
	if r.Backend == "" {
		r.Backend = BackendAuto
	}
	if r.Options.Resolution == "" {
		r.Options.Resolution = Resolution1080p
	}
	if r.Options.SegmentLength == 0 {
		r.Options.SegmentLength = 7
	}
	if r.Options.Quality == "" {
		r.Options.Quality = "high"
	}
}

// Validate checks field bounds. Callers should apply defaults first.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%w: field %q failed on %q", ErrInvalidRequest, f.Field(), f.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
