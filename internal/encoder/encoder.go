// Package encoder compiles a segment of retained frames into a video by
// invoking ffmpeg. The input is an exact concat list of the segment's
// artifacts, never a directory glob, so the encoded set always matches the
// set that gets deleted afterwards.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/pagelapse/pagelapse/internal/errors"
	"github.com/pagelapse/pagelapse/internal/store"
)

// FilterChain is the fixed post-processing pipeline: drop frames ffmpeg
// itself considers near-duplicates, rebuild presentation timestamps, and
// force even dimensions for yuv420p output.
const FilterChain = "mpdecimate,setpts=N/FRAME_RATE/TB,scale=trunc(iw/2)*2:trunc(ih/2)*2"

// OutputPrefix names compiled videos; the timestamp is the compile time.
const OutputPrefix = "timelapse_"

// Config configures the ffmpeg encoder.
type Config struct {
	// FrameRate of the output video in frames per second.
	FrameRate float64

	// OutDir receives the compiled video.
	OutDir string

	// Format is the container extension without dot. Default: mp4.
	Format string

	// BinPath is the ffmpeg binary. Default: "ffmpeg" from PATH.
	BinPath string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Format == "" {
		c.Format = "mp4"
	}
	if c.BinPath == "" {
		c.BinPath = "ffmpeg"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// FFmpeg runs the external encoder.
type FFmpeg struct {
	cfg Config
}

// New creates an FFmpeg encoder.
func New(cfg Config) *FFmpeg {
	cfg.defaults()
	return &FFmpeg{cfg: cfg}
}

// Compile encodes the given frames into a timestamped video and returns the
// output path. The frame list must be non-empty. Failure leaves all input
// frames untouched on disk.
func (f *FFmpeg) Compile(ctx context.Context, frames []store.Artifact, now time.Time) (string, error) {
	if len(frames) == 0 {
		return "", apperrors.New(apperrors.CodeEncoding, "empty segment")
	}

	listPath, err := writeConcatList(f.cfg.OutDir, frames, f.cfg.FrameRate)
	if err != nil {
		return "", err
	}
	defer os.Remove(listPath)

	outPath := filepath.Join(f.cfg.OutDir,
		fmt.Sprintf("%s%013d.%s", OutputPrefix, now.UnixMilli(), f.cfg.Format))
	args := buildArgs(f.cfg, listPath, outPath)

	f.cfg.Logger.Info("encoding segment", "frames", len(frames), "output", outPath,
		"frame_rate", f.cfg.FrameRate)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeEncoding,
			"ffmpeg failed: %s", tail(stderrBuf.String(), 500))
	}
	return outPath, nil
}

// buildArgs constructs the complete ffmpeg argument slice.
func buildArgs(cfg Config, listPath, outPath string) []string {
	args := make([]string, 0, 20)
	args = append(args, cfg.BinPath, "-hide_banner", "-nostdin", "-y", "-loglevel", "error")

	// Exact segment input via concat demuxer.
	args = append(args, "-f", "concat", "-safe", "0", "-i", listPath)

	args = append(args,
		"-vf", FilterChain,
		"-r", formatRate(cfg.FrameRate),
		"-pix_fmt", "yuv420p",
	)

	args = append(args, outPath)
	return args
}

// writeConcatList emits an ffmpeg concat demuxer list holding every frame
// with its display duration. The last frame is listed twice: the concat
// demuxer ignores the final duration directive otherwise.
func writeConcatList(dir string, frames []store.Artifact, frameRate float64) (string, error) {
	tmp, err := os.CreateTemp(dir, "segment_*.txt")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeEncoding, "create concat list")
	}

	duration := 1.0
	if frameRate > 0 {
		duration = 1.0 / frameRate
	}

	var b strings.Builder
	for _, a := range frames {
		abs, err := filepath.Abs(a.Path)
		if err != nil {
			abs = a.Path
		}
		fmt.Fprintf(&b, "file '%s'\nduration %s\n", abs, formatRate(duration))
	}
	if last, err := filepath.Abs(frames[len(frames)-1].Path); err == nil {
		fmt.Fprintf(&b, "file '%s'\n", last)
	}

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", apperrors.Wrap(err, apperrors.CodeEncoding, "write concat list")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", apperrors.Wrap(err, apperrors.CodeEncoding, "close concat list")
	}
	return tmp.Name(), nil
}

func formatRate(v float64) string {
	s := fmt.Sprintf("%f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
