// Package loop implements the capture-dedup-backoff-compile control loop:
// when to capture, whether to keep a capture, how far to back off while the
// page is static, when to compile a segment, and how to resume after an
// interruption. Steps run strictly sequentially; at most one capture or one
// compilation is ever in flight.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	apperrors "github.com/pagelapse/pagelapse/internal/errors"
	"github.com/pagelapse/pagelapse/internal/fingerprint"
	"github.com/pagelapse/pagelapse/internal/store"
	"github.com/pagelapse/pagelapse/internal/syncx"
	"github.com/pagelapse/pagelapse/internal/trace"
)

// SnapshotProvider produces page screenshots. Nil or empty bytes mean no
// frame was produced this cycle; the provider handles its own failures.
type SnapshotProvider interface {
	Capture(ctx context.Context) []byte
}

// Encoder compiles a frame segment into a video and returns the output path.
type Encoder interface {
	Compile(ctx context.Context, frames []store.Artifact, now time.Time) (string, error)
}

// Params are the immutable schedule parameters, supplied once at startup.
type Params struct {
	// URL is recorded for status output only; the provider owns the target.
	URL string

	// BaseInterval between cycles. Zero means single-shot: exactly one
	// capture, no scheduling, no compilation.
	BaseInterval time.Duration

	// MaxInterval caps the backoff delay. Default: 24h.
	MaxInterval time.Duration

	// MaxFrames triggers compilation when the segment reaches this size.
	// Zero means size-unbounded; only backoff saturation completes a segment.
	MaxFrames int

	// Infinite re-arms the loop after each compilation instead of exiting.
	Infinite bool

	// Threshold is the maximum fingerprint distance still considered a
	// duplicate. Negative means every non-empty capture is retained.
	Threshold int

	// HashSize is the fingerprint granularity.
	HashSize int

	// FrameRate of compiled output. Zero selects frames-only mode: segments
	// reset without encoding and frames stay on disk.
	FrameRate float64
}

func (p *Params) defaults() {
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultMaxInterval
	}
	if p.HashSize <= 0 {
		p.HashSize = fingerprint.DefaultSize
	}
}

// Controller owns the run state and drives the loop.
type Controller struct {
	params   Params
	provider SnapshotProvider
	encoder  Encoder
	frames   *store.Store
	clock    Clock

	state    RunState
	compiles int
	lastOut  string

	status *syncx.RWGuard[Status]
	latest *syncx.RWGuard[[]byte]
	events chan Event
}

// New creates a controller. encoder may be nil when FrameRate is zero.
func New(params Params, provider SnapshotProvider, encoder Encoder, frames *store.Store, clock Clock) *Controller {
	params.defaults()
	if clock == nil {
		clock = RealClock()
	}
	return &Controller{
		params:   params,
		provider: provider,
		encoder:  encoder,
		frames:   frames,
		clock:    clock,
		status:   syncx.NewGuard(Status{URL: params.URL}),
		latest:   syncx.NewGuard[[]byte](nil),
		events:   make(chan Event, EventBuffer),
	}
}

// Events returns the cycle event feed. The feed closes when Run returns.
func (c *Controller) Events() <-chan Event { return c.events }

// Status returns a snapshot of the loop state.
func (c *Controller) Status() Status { return c.status.Get() }

// LatestFrame returns the most recent retained capture, or nil.
func (c *Controller) LatestFrame() []byte { return c.latest.Get() }

// Run recovers prior state, performs the first cycle synchronously, then
// follows the schedule until the segment lifecycle ends or ctx is cancelled.
// Startup and first-cycle errors are returned; later cycle errors are logged
// and the loop continues.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.events)

	if err := c.recover(ctx); err != nil {
		return err
	}

	// Capture-then-schedule: the first frame is always produced at launch.
	first := true
	for {
		if err := c.cycle(ctx); err != nil {
			if first {
				return err
			}
			slog.Error("capture cycle failed", "error", err)
		}
		first = false

		delay, cont := c.schedule(ctx)
		if !cont {
			return nil
		}

		slog.Debug("next cycle armed", "delay", delay, "dup_run", c.state.DupRun)
		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(delay):
		}
	}
}

// recover adopts artifacts left by a previous run and rebuilds the
// comparison baseline from the last one.
func (c *Controller) recover(ctx context.Context) error {
	recovered, err := c.frames.Recover()
	if err != nil {
		return err
	}
	if len(recovered) == 0 {
		return nil
	}

	last := recovered[len(recovered)-1]
	data, err := os.ReadFile(last.Path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeRecovery, "read recovered frame %s", last.Path)
	}
	fp, err := fingerprint.Compute(data, c.params.HashSize)
	if err != nil {
		// A corrupt trailing frame degrades to a fresh baseline.
		slog.Warn("cannot fingerprint recovered frame", "path", last.Path, "error", err)
	} else {
		c.state.Last = fp
	}

	slog.Info("recovered segment", "frames", len(recovered), "last", last.Path)
	c.publish(0)
	return nil
}

// cycle performs one capture attempt: snapshot, fingerprint, retain or
// discard. Empty captures touch nothing. The comparison baseline advances to
// the new fingerprint on every non-empty capture, retained or not, so
// near-duplicates are measured against the immediately preceding capture.
func (c *Controller) cycle(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "capture_cycle")
	defer span.End()
	log := trace.Logger(ctx)

	now := c.clock.Now()
	data := c.provider.Capture(ctx)
	if len(data) == 0 {
		log.Info("empty capture, skipping", "dup_run", c.state.DupRun)
		c.emit(Event{Type: EventEmpty, Timestamp: now, DupRun: c.state.DupRun, SegmentLen: c.frames.Len()})
		return nil
	}

	fp, err := fingerprint.Compute(data, c.params.HashSize)
	if err != nil {
		if errors.Is(err, fingerprint.ErrEmptyInput) {
			log.Info("empty capture, skipping")
		} else {
			// Undecodable bytes count as no frame produced; see DESIGN.md.
			log.Warn("unusable capture", "error", err)
		}
		c.emit(Event{Type: EventEmpty, Timestamp: now, DupRun: c.state.DupRun, SegmentLen: c.frames.Len()})
		return nil
	}

	retain := true
	dist := 0
	switch {
	case c.state.Last == nil:
		log.Debug("no prior fingerprint, retaining")
	case c.params.Threshold < 0:
		log.Debug("negative threshold, retaining unconditionally")
	default:
		dist, err = c.state.Last.Distance(fp)
		if err != nil {
			log.Warn("fingerprint comparison failed, retaining", "error", err)
		} else {
			retain = dist > c.params.Threshold
		}
	}

	c.state.Last = fp

	if !retain {
		c.state.DupRun++
		log.Info("duplicate frame discarded", "distance", dist, "dup_run", c.state.DupRun)
		c.emit(Event{Type: EventDiscarded, Timestamp: now, Distance: dist, DupRun: c.state.DupRun, SegmentLen: c.frames.Len()})
		c.publish(now.UnixMilli())
		return nil
	}

	artifact, err := c.frames.Append(now, data)
	if err != nil {
		return err
	}
	c.state.DupRun = 0
	c.latest.Set(data)

	log.Info("frame retained", "path", artifact.Path, "distance", dist, "segment_len", c.frames.Len())
	c.emit(Event{Type: EventRetained, Timestamp: now, Distance: dist, SegmentLen: c.frames.Len()})
	c.publish(now.UnixMilli())
	return nil
}

// schedule computes the next delay and decides whether the segment is done.
// It returns the delay before the next cycle and whether the loop continues.
func (c *Controller) schedule(ctx context.Context) (time.Duration, bool) {
	if c.params.BaseInterval <= 0 {
		// No schedule configured: one capture, then exit.
		slog.Info("no interval configured, single capture complete")
		return 0, false
	}

	delay := backoffDelay(c.params.BaseInterval, c.params.MaxInterval, c.state.DupRun)

	sizeReached := c.params.MaxFrames > 0 && c.frames.Len() >= c.params.MaxFrames
	if sizeReached || saturated(delay, c.params.MaxInterval) {
		c.compile(ctx)
		c.state.Reset()
		c.frames.Reset()
		c.publish(0)

		if !c.params.Infinite {
			slog.Info("segment complete, exiting")
			return 0, false
		}
		slog.Info("segment complete, starting next", "delay", delay)
	}

	c.publishDelay(delay)
	return delay, true
}

// compile hands the current segment to the encoder and, on success, deletes
// exactly the compiled artifacts. Failures leave everything on disk and are
// not retried; the caller resets run state either way.
func (c *Controller) compile(ctx context.Context) {
	now := c.clock.Now()
	seg := c.frames.Artifacts()

	if c.params.FrameRate == 0 {
		// Frames-only mode: keep artifacts, skip encoding entirely.
		slog.Info("frames-only mode, segment left on disk", "frames", len(seg))
		return
	}
	if len(seg) == 0 {
		slog.Info("empty segment, nothing to compile")
		return
	}

	out, err := c.encoder.Compile(ctx, seg, now)
	if err != nil {
		slog.Error("compilation failed, frames left on disk", "frames", len(seg), "error", err)
		c.emit(Event{Type: EventCompileFailed, Timestamp: now, SegmentLen: len(seg)})
		return
	}

	c.frames.Clear(seg)
	c.compiles++
	c.lastOut = out
	slog.Info("segment compiled", "output", out, "frames", len(seg))
	c.emit(Event{Type: EventCompiled, Timestamp: now, SegmentLen: len(seg), Output: out})
}

// emit sends an event without blocking the loop.
func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

func (c *Controller) publish(lastMs int64) {
	segLen := c.frames.Len()
	c.status.Update(func(st *Status) any {
		st.URL = c.params.URL
		st.SegmentLen = segLen
		st.DupRun = c.state.DupRun
		st.Compilations = c.compiles
		st.LastOutput = c.lastOut
		if lastMs > 0 {
			st.LastCapture = time.UnixMilli(lastMs)
		}
		return nil
	})
}

func (c *Controller) publishDelay(delay time.Duration) {
	c.status.Update(func(st *Status) any {
		st.NextDelay = delay
		return nil
	})
}
