package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/auralane/render-service/internal/model"
)

// Encoder turns a PCM asset into the requested container/codec. workdir is
// a caller-owned scratch directory; implementations may write temp files
// there but must not keep anything outside it.
type Encoder interface {
	Encode(ctx context.Context, a *Asset, format model.Format, quality model.Quality, workdir string) ([]byte, error)
}

// FFmpegEncoder encodes MP3 by shelling out to ffmpeg. WAV output never
// leaves the process.
type FFmpegEncoder struct {
	binary string
}

// NewFFmpegEncoder creates an encoder using the given ffmpeg binary, or
// "ffmpeg" from PATH when empty.
func NewFFmpegEncoder(binary string) *FFmpegEncoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEncoder{binary: binary}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, a *Asset, format model.Format, quality model.Quality, workdir string) ([]byte, error) {
	master := a.Resample(quality.SampleRate())
	wavBytes := EncodeWAV(master)

	if format == model.FormatWAV {
		return wavBytes, nil
	}

	in := filepath.Join(workdir, "master.wav")
	out := filepath.Join(workdir, "master.mp3")
	if err := os.WriteFile(in, wavBytes, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write encoder input: %w", err)
	}

	// #nosec G204 -- binary comes from configuration, arguments are built here
	cmd := exec.CommandContext(ctx, e.binary,
		"-y",
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ac", "2",
		"-b:a", fmt.Sprintf("%dk", quality.BitrateKbps()),
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg encode failed: %w - output: %s", err, string(output))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoder output: %w", err)
	}
	return data, nil
}
