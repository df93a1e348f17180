package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/core/event"
	"github.com/l1jgo/enginecore/internal/core/system"
	"github.com/l1jgo/enginecore/internal/mathx"
	"go.uber.org/zap"
)

// Simulator is the physics collaborator, stepped once per fixed step.
type Simulator interface {
	StepSimulation(dt float64) error
}

// Renderer brackets the render pass of every frame.
type Renderer interface {
	BeginFrame(ctx ecs.RenderContext)
	EndFrame() error
}

// Viewpoint supplies the camera matrices for a frame.
type Viewpoint interface {
	Matrices() (view, projection mathx.Mat4)
}

// Config holds the timing knobs of a Loop.
type Config struct {
	FixedStep       float64       // seconds; <= 0 selects DefaultStep
	MaxCatchUpSteps int           // <= 0 is unbounded
	FrameInterval   time.Duration // target frame pacing for Run
}

// Loop drives one World through the outer frame: pre-update events, variable
// step, zero or more fixed steps, render and cleanup, strictly in that order.
type Loop struct {
	log    *zap.Logger
	world  *ecs.World
	runner *system.Runner
	bus    *event.Bus
	acc    *Accumulator

	sim      Simulator
	renderer Renderer
	view     Viewpoint
	clock    Clock
	interval time.Duration

	// physMu serializes physics stepping with fixed dispatch and with outside
	// readers using WithPhysicsLock.
	physMu sync.Mutex

	frames  uint64
	elapsed float64
	skipped uint64
	fps     fpsCounter
}

type Option func(*Loop)

func WithRunner(r *system.Runner) Option { return func(l *Loop) { l.runner = r } }
func WithEventBus(b *event.Bus) Option   { return func(l *Loop) { l.bus = b } }
func WithSimulator(s Simulator) Option   { return func(l *Loop) { l.sim = s } }
func WithRenderer(r Renderer) Option     { return func(l *Loop) { l.renderer = r } }
func WithViewpoint(v Viewpoint) Option   { return func(l *Loop) { l.view = v } }
func WithClock(c Clock) Option           { return func(l *Loop) { l.clock = c } }

func New(world *ecs.World, log *zap.Logger, cfg Config, opts ...Option) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		log:      log,
		world:    world,
		runner:   system.NewRunner(),
		acc:      NewAccumulator(cfg.FixedStep, cfg.MaxCatchUpSteps),
		clock:    RealClock{},
		interval: cfg.FrameInterval,
	}
	if l.interval <= 0 {
		l.interval = time.Second / 60
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) World() *ecs.World         { return l.world }
func (l *Loop) Runner() *system.Runner    { return l.runner }
func (l *Loop) Accumulator() *Accumulator { return l.acc }

// SetViewpoint swaps the camera used for subsequent frames.
func (l *Loop) SetViewpoint(v Viewpoint) { l.view = v }

// WithPhysicsLock runs fn while no fixed step is in progress.
func (l *Loop) WithPhysicsLock(fn func()) {
	l.physMu.Lock()
	defer l.physMu.Unlock()
	fn()
}

// Frame advances the world by delta seconds of wall-clock time. A physics
// failure aborts the frame and is returned.
func (l *Loop) Frame(delta float64) error {
	if delta < 0 {
		delta = 0
	}
	l.frames++
	l.elapsed += delta
	vt := ecs.Time{Delta: delta, Total: l.elapsed, Frame: l.frames}

	if l.bus != nil {
		l.bus.SwapBuffers()
		l.bus.DispatchAll()
	}
	l.runner.TickPhase(system.PhasePreUpdate, vt)

	l.runner.TickPhase(system.PhaseVariable, vt)
	l.world.MainUpdate(vt)

	plan := l.acc.Advance(delta)
	if plan.Skipped > 0 {
		l.skipped += uint64(plan.Skipped)
		l.log.Warn("fixed-step catch-up capped",
			zap.Int("ran", plan.Steps),
			zap.Int("skipped", plan.Skipped),
			zap.Float64("delta", delta),
		)
	}
	for i := 0; i < plan.Steps; i++ {
		if err := l.fixedStep(l.acc.Next()); err != nil {
			return err
		}
	}

	l.render(vt)
	l.runner.TickPhase(system.PhaseCleanup, vt)
	l.fps.tick(delta)
	return nil
}

func (l *Loop) fixedStep(ft ecs.Time) error {
	l.physMu.Lock()
	defer l.physMu.Unlock()
	if l.sim != nil {
		if err := l.sim.StepSimulation(ft.Delta); err != nil {
			return fmt.Errorf("physics step %d: %w", ft.Frame, err)
		}
	}
	l.runner.TickPhase(system.PhaseFixed, ft)
	l.world.FixedUpdate(ft)
	return nil
}

func (l *Loop) render(vt ecs.Time) {
	ctx := ecs.RenderContext{
		View:       mathx.Identity4(),
		Projection: mathx.Identity4(),
		Time:       vt,
	}
	if l.view != nil {
		ctx.View, ctx.Projection = l.view.Matrices()
	}
	if l.renderer != nil {
		l.renderer.BeginFrame(ctx)
	}
	l.world.Render(ctx)
	l.world.DrawGUI(vt)
	l.runner.TickPhase(system.PhaseRender, vt)
	if l.renderer != nil {
		if err := l.renderer.EndFrame(); err != nil {
			l.log.Warn("present frame", zap.Error(err))
		}
	}
}

// Run drives frames from the clock, pacing them at the frame interval, until
// ctx is cancelled or a frame fails.
func (l *Loop) Run(ctx context.Context) error {
	last := l.clock.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(l.interval):
		}
		now := l.clock.Now()
		delta := now.Sub(last).Seconds()
		last = now
		if err := l.Frame(delta); err != nil {
			return err
		}
	}
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Frames       uint64
	FixedSteps   uint64
	SkippedSteps uint64
	Pending      float64
	FPS          int
}

func (l *Loop) Stats() Stats {
	return Stats{
		Frames:       l.frames,
		FixedSteps:   l.acc.Steps(),
		SkippedSteps: l.skipped,
		Pending:      l.acc.Pending(),
		FPS:          l.fps.current,
	}
}

// fpsCounter reports the number of frames completed in the last full second.
type fpsCounter struct {
	count   int
	elapsed float64
	current int
}

func (f *fpsCounter) tick(delta float64) {
	f.count++
	f.elapsed += delta
	if f.elapsed >= 1 {
		f.current = f.count
		f.count = 0
		f.elapsed = 0
	}
}
