// Package store manages the on-disk segment of retained capture artifacts.
// Artifacts are named with a fixed prefix and a millisecond timestamp so
// lexicographic order equals capture order, and a restart can recover the
// previous incomplete segment by globbing the output directory.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	apperrors "github.com/pagelapse/pagelapse/internal/errors"
)

// Artifact naming constants. The timestamp is zero-padded so that
// lexicographic sorting matches temporal order.
const (
	FramePrefix = "frame_"
	FrameExt    = ".png"
	frameGlob   = FramePrefix + "*" + FrameExt
)

// Artifact is a single retained capture on disk.
type Artifact struct {
	Path      string
	Timestamp time.Time
}

// Store holds the ordered artifact list for the current segment. It is only
// touched by the single active loop step, so it carries no lock.
type Store struct {
	dir    string
	frames []Artifact
	lastMs int64
}

// New creates a store rooted at dir. The directory must already exist;
// Recover validates that.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Recover scans the output directory for artifacts left by a previous run,
// sorts them, and adopts them as the current segment. A missing or
// unreadable directory is a fatal startup error.
func (s *Store) Recover() ([]Artifact, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfig, "output directory %s", s.dir)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.CodeConfig, "output path %s is not a directory", s.dir)
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, frameGlob))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeRecovery, "scan %s", s.dir)
	}
	sort.Strings(matches)

	s.frames = s.frames[:0]
	for _, path := range matches {
		ts, ok := parseTimestamp(filepath.Base(path))
		if !ok {
			slog.Warn("ignoring unparsable frame file", "path", path)
			continue
		}
		s.frames = append(s.frames, Artifact{Path: path, Timestamp: ts})
		if ms := ts.UnixMilli(); ms > s.lastMs {
			s.lastMs = ms
		}
	}
	return s.Artifacts(), nil
}

// Append persists the capture bytes under a timestamped name and records the
// artifact. Either the write fully succeeds and the artifact becomes visible,
// or the segment is left untouched.
func (s *Store) Append(ts time.Time, data []byte) (Artifact, error) {
	ms := ts.UnixMilli()
	if ms <= s.lastMs {
		ms = s.lastMs + 1 // keep names strictly increasing within the run
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s%013d%s", FramePrefix, ms, FrameExt))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, apperrors.Wrapf(err, apperrors.CodeRecovery, "write frame %s", path)
	}

	a := Artifact{Path: path, Timestamp: time.UnixMilli(ms)}
	s.frames = append(s.frames, a)
	s.lastMs = ms
	return a, nil
}

// Clear deletes the listed artifacts from disk. Deletion is best-effort
// cleanup: each failure is logged and the remaining deletes continue. Stale
// files are picked up again by the next Recover.
func (s *Store) Clear(frames []Artifact) {
	for _, a := range frames {
		if err := os.Remove(a.Path); err != nil {
			slog.Warn("failed to delete frame", "path", a.Path, "error", err)
		}
	}
}

// Reset empties the in-memory segment without touching disk.
func (s *Store) Reset() {
	s.frames = s.frames[:0]
}

// Artifacts returns a copy of the current segment, oldest first.
func (s *Store) Artifacts() []Artifact {
	out := make([]Artifact, len(s.frames))
	copy(out, s.frames)
	return out
}

// Len returns the current segment size.
func (s *Store) Len() int { return len(s.frames) }

// Last returns the most recent artifact, if any.
func (s *Store) Last() (Artifact, bool) {
	if len(s.frames) == 0 {
		return Artifact{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// parseTimestamp extracts the millisecond timestamp from a frame file name.
func parseTimestamp(name string) (time.Time, bool) {
	if len(name) <= len(FramePrefix)+len(FrameExt) {
		return time.Time{}, false
	}
	digits := name[len(FramePrefix) : len(name)-len(FrameExt)]
	var ms int64
	for _, r := range digits {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		ms = ms*10 + int64(r-'0')
	}
	return time.UnixMilli(ms), true
}
