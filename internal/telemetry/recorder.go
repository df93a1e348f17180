package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/core/event"
	"github.com/l1jgo/enginecore/internal/core/loop"
	"github.com/l1jgo/enginecore/internal/core/system"
	"go.uber.org/zap"
)

// StatsSource supplies loop counters; *loop.Loop satisfies it.
type StatsSource interface {
	Stats() loop.Stats
}

// Recorder samples engine counters at the end of every frame and flushes them
// to a Sink every flushEvery frames. Cleanup phase.
type Recorder struct {
	log        *zap.Logger
	sink       Sink
	world      *ecs.World
	stats      StatsSource
	flushEvery int
	timeout    time.Duration
	now        func() time.Time

	buf     []FrameSample
	created atomic.Int64
	removed atomic.Int64

	flushes uint64
	dropped uint64
}

func NewRecorder(world *ecs.World, stats StatsSource, sink Sink, log *zap.Logger, flushEvery int) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &Recorder{
		log:        log,
		sink:       sink,
		world:      world,
		stats:      stats,
		flushEvery: flushEvery,
		timeout:    5 * time.Second,
		now:        time.Now,
		buf:        make([]FrameSample, 0, flushEvery),
	}
}

// Subscribe counts entity churn from the world's event bus.
func (r *Recorder) Subscribe(bus *event.Bus) {
	event.Subscribe(bus, func(ecs.EntityCreated) { r.created.Add(1) })
	event.Subscribe(bus, func(ecs.EntityRemoved) { r.removed.Add(1) })
}

func (r *Recorder) Phase() system.Phase { return system.PhaseCleanup }

func (r *Recorder) Update(t ecs.Time) {
	ws := r.world.Stats()
	s := FrameSample{
		Frame:      t.Frame,
		Entities:   ws.Entities,
		Components: ws.Components,
		HookPanics: ws.HookPanics,
		At:         r.now(),
	}
	if r.stats != nil {
		ls := r.stats.Stats()
		s.FixedSteps = ls.FixedSteps
		s.SkippedSteps = ls.SkippedSteps
		s.FPS = ls.FPS
	}
	r.buf = append(r.buf, s)
	if len(r.buf) < r.flushEvery {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_ = r.Flush(ctx)
}

// Flush writes buffered samples. A failed batch is logged and dropped.
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.buf) == 0 {
		return nil
	}
	b := Batch{
		Samples: r.buf,
		Created: int(r.created.Swap(0)),
		Removed: int(r.removed.Swap(0)),
	}
	r.buf = make([]FrameSample, 0, r.flushEvery)
	if err := r.sink.WriteBatch(ctx, b); err != nil {
		r.dropped += uint64(len(b.Samples))
		r.log.Warn("telemetry flush failed",
			zap.Int("samples", len(b.Samples)),
			zap.Uint64("first_frame", b.Samples[0].Frame),
			zap.Error(err))
		return err
	}
	r.flushes++
	return nil
}

// Buffered is the number of samples waiting for the next flush.
func (r *Recorder) Buffered() int { return len(r.buf) }

func (r *Recorder) Flushes() uint64 { return r.flushes }

// Dropped counts samples lost to failed flushes.
func (r *Recorder) Dropped() uint64 { return r.dropped }
