// Package ffmpeg merges generated video segments with the narration
// track by shelling out to ffmpeg/ffprobe.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
)

// Editor concatenates video clips, overlays audio and probes the
// merged file. It satisfies provider.Editor.
type Editor struct {
	// Dir is where intermediate lists and merged files are written.
	Dir string
}

// New builds an Editor working under dir.
func New(dir string) *Editor {
	return &Editor{Dir: dir}
}

func (e *Editor) Merge(ctx context.Context, video []media.VideoSegment, audio []media.AudioSegment) (*media.File, error) {
	if len(video) == 0 {
		return nil, provider.Errorf(provider.ClassResourceError, "no video segments to merge")
	}
	workDir := filepath.Join(e.Dir, uuid.New().String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, provider.Errorf(provider.ClassResourceError, "creating work dir: %v", err)
	}

	listPath := filepath.Join(workDir, "segments.txt")
	if err := writeConcatList(listPath, video); err != nil {
		return nil, err
	}

	outPath := filepath.Join(workDir, "final.mp4")
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath}
	for _, a := range audio {
		args = append(args, "-i", a.URL)
	}
	if len(audio) > 0 {
		// Concatenate the narration inputs into one track and lay it
		// over the concatenated video.
		var inputs []string
		for i := range audio {
			inputs = append(inputs, fmt.Sprintf("[%d:a]", i+1))
		}
		filter := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[voice]", strings.Join(inputs, ""), len(audio))
		args = append(args,
			"-filter_complex", filter,
			"-map", "0:v", "-map", "[voice]",
			"-shortest",
		)
	}
	args = append(args, "-c:v", "libx264", "-c:a", "aac", outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, provider.Errorf(provider.ClassResourceError, "ffmpeg failed: %v: %s", err, tail(stderr.String()))
	}

	duration, err := probeDuration(ctx, outPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return nil, provider.Errorf(provider.ClassResourceError, "stat merged file: %v", err)
	}
	return &media.File{Path: outPath, Size: info.Size(), Duration: duration}, nil
}

func writeConcatList(path string, video []media.VideoSegment) error {
	var buf bytes.Buffer
	for _, seg := range video {
		fmt.Fprintf(&buf, "file '%s'\n", strings.ReplaceAll(seg.URL, "'", `'\''`))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return provider.Errorf(provider.ClassResourceError, "writing concat list: %v", err)
	}
	return nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, provider.Errorf(provider.ClassResourceError, "ffprobe failed: %v: %s", err, tail(stderr.String()))
	}
	var probed probeOutput
	if err := json.Unmarshal(out.Bytes(), &probed); err != nil {
		return 0, provider.Errorf(provider.ClassResourceError, "parsing ffprobe output: %v", err)
	}
	duration, err := strconv.ParseFloat(probed.Format.Duration, 64)
	if err != nil {
		return 0, provider.Errorf(provider.ClassResourceError, "parsing duration %q: %v", probed.Format.Duration, err)
	}
	return duration, nil
}

func tail(s string) string {
	if len(s) > 512 {
		return s[len(s)-512:]
	}
	return s
}
