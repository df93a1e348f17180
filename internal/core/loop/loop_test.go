package loop

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/core/event"
	"github.com/l1jgo/enginecore/internal/core/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// --- Accumulator ---

func TestAccumulatorWholeSteps(t *testing.T) {
	tests := []struct {
		delta float64
		want  int
	}{
		{0.1, 6},
		{1.0, 60},
		{2.0, 120},
		{1.0 / 60, 1},
		{0.001, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		a := NewAccumulator(DefaultStep, 0)
		if got := a.Advance(tt.delta).Steps; got != tt.want {
			t.Errorf("Advance(%v) = %d steps, want %d", tt.delta, got, tt.want)
		}
	}
}

func TestAccumulatorCarriesRemainder(t *testing.T) {
	a := NewAccumulator(DefaultStep, 0)
	total := 0
	for i := 0; i < 16; i++ {
		total += a.Advance(0.001).Steps
	}
	if total != 0 {
		t.Fatalf("ran %d steps on 16ms", total)
	}
	if math.Abs(a.Pending()-0.016) > 1e-12 {
		t.Errorf("pending = %v, want 0.016", a.Pending())
	}
	if got := a.Advance(0.001).Steps; got != 1 {
		t.Errorf("17th millisecond ran %d steps, want 1", got)
	}
}

func TestAccumulatorCatchUpCap(t *testing.T) {
	a := NewAccumulator(DefaultStep, 5)
	p := a.Advance(1.0)
	if p.Steps != 5 || p.Skipped != 55 {
		t.Errorf("plan = %+v, want 5 run / 55 skipped", p)
	}
	if a.Pending() >= a.Step() {
		t.Errorf("excess time kept: %v", a.Pending())
	}
}

func TestAccumulatorLogicalTime(t *testing.T) {
	a := NewAccumulator(0, 0)
	if a.Step() != DefaultStep {
		t.Fatalf("step = %v", a.Step())
	}
	var last ecs.Time
	for i := 0; i < 60; i++ {
		ft := a.Next()
		if ft.Delta != DefaultStep || ft.Total <= last.Total {
			t.Fatalf("step %d: %+v after %+v", i, ft, last)
		}
		last = ft
	}
	if last.Frame != 60 || math.Abs(last.Total-1.0) > 1e-12 {
		t.Errorf("after 60 steps: %+v", last)
	}
}

// --- Frame loop ---

// recorder logs hook order into a shared trace.
type recorder struct {
	ecs.Base
	trace *[]string
	fixed int
}

func (r *recorder) Start()                   { *r.trace = append(*r.trace, "start") }
func (r *recorder) Update(ecs.Time)          { *r.trace = append(*r.trace, "update") }
func (r *recorder) Render(ecs.RenderContext) { *r.trace = append(*r.trace, "render") }
func (r *recorder) FixedUpdate(ecs.Time) {
	r.fixed++
	*r.trace = append(*r.trace, "fixed")
}

type fakeSim struct {
	steps   int
	failAt  int
	inStep  atomic.Bool
	overlap atomic.Bool
}

var errDiverged = errors.New("diverged")

func (s *fakeSim) StepSimulation(dt float64) error {
	s.inStep.Store(true)
	defer s.inStep.Store(false)
	s.steps++
	if s.failAt > 0 && s.steps == s.failAt {
		return errDiverged
	}
	return nil
}

type fakeRenderer struct {
	trace *[]string
	ctx   ecs.RenderContext
}

func (r *fakeRenderer) BeginFrame(ctx ecs.RenderContext) {
	r.ctx = ctx
	*r.trace = append(*r.trace, "begin")
}

func (r *fakeRenderer) EndFrame() error {
	*r.trace = append(*r.trace, "end")
	return nil
}

func TestFrameOneSecond(t *testing.T) {
	w := ecs.NewWorld(zaptest.NewLogger(t))
	var trace []string
	rec := &recorder{trace: &trace}
	ecs.AddComponent(w, w.CreateEntity(), rec)
	sim := &fakeSim{}
	l := New(w, zaptest.NewLogger(t), Config{}, WithSimulator(sim))

	if err := l.Frame(1.0); err != nil {
		t.Fatal(err)
	}
	if rec.fixed != 60 || sim.steps != 60 {
		t.Fatalf("fixed=%d physics=%d, want 60/60", rec.fixed, sim.steps)
	}
	if trace[0] != "start" || trace[1] != "update" || trace[2] != "fixed" {
		t.Errorf("trace starts %v", trace[:3])
	}
	if trace[len(trace)-1] != "render" {
		t.Errorf("render not last: %v", trace[len(trace)-1])
	}
	st := l.Stats()
	if st.Frames != 1 || st.FixedSteps != 60 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFrameSmallDeltaRunsNoFixedStep(t *testing.T) {
	w := ecs.NewWorld(nil)
	var trace []string
	rec := &recorder{trace: &trace}
	ecs.AddComponent(w, w.CreateEntity(), rec)
	l := New(w, nil, Config{})

	for i := 0; i < 16; i++ {
		if err := l.Frame(0.001); err != nil {
			t.Fatal(err)
		}
	}
	if rec.fixed != 0 {
		t.Fatalf("fixed = %d after 16ms", rec.fixed)
	}
	l.Frame(0.001)
	if rec.fixed != 1 {
		t.Errorf("fixed = %d after 17ms, want 1", rec.fixed)
	}
}

func TestFramePhaseOrder(t *testing.T) {
	w := ecs.NewWorld(nil)
	var trace []string
	ecs.AddComponent(w, w.CreateEntity(), &recorder{trace: &trace})
	runner := system.NewRunner()
	for _, p := range []system.Phase{system.PhaseCleanup, system.PhaseRender, system.PhaseFixed, system.PhaseVariable, system.PhasePreUpdate} {
		name := p.String()
		runner.Register(system.Func{P: p, Fn: func(ecs.Time) { trace = append(trace, name) }})
	}
	l := New(w, nil, Config{}, WithRunner(runner), WithRenderer(&fakeRenderer{trace: &trace}))

	l.Frame(DefaultStep)
	// Phase systems bracket component hooks: the fixed system runs before
	// component FixedUpdate, the render system after component Render.
	want := []string{"pre-update", "variable", "start", "update", "fixed", "fixed", "begin", "render", "render", "end", "cleanup"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestPhysicsFailureIsFatal(t *testing.T) {
	w := ecs.NewWorld(nil)
	sim := &fakeSim{failAt: 3}
	l := New(w, nil, Config{}, WithSimulator(sim))

	err := l.Frame(0.1)
	if !errors.Is(err, errDiverged) {
		t.Fatalf("err = %v", err)
	}
	if sim.steps != 3 {
		t.Errorf("stepped %d times after failure", sim.steps)
	}
}

func TestCatchUpCapLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := New(ecs.NewWorld(nil), zap.New(core), Config{MaxCatchUpSteps: 4})
	l.Frame(1.0)
	if l.Stats().FixedSteps != 4 || l.Stats().SkippedSteps != 56 {
		t.Errorf("stats = %+v", l.Stats())
	}
	if logs.FilterMessage("fixed-step catch-up capped").Len() != 1 {
		t.Error("cap not logged")
	}
}

func TestPhysicsLockExcludesStepping(t *testing.T) {
	sim := &fakeSim{}
	l := New(ecs.NewWorld(nil), nil, Config{}, WithSimulator(sim))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			l.WithPhysicsLock(func() {
				if sim.inStep.Load() {
					sim.overlap.Store(true)
				}
			})
		}
	}()
	for i := 0; i < 50; i++ {
		l.Frame(0.05)
	}
	<-done
	if sim.overlap.Load() {
		t.Error("physics read overlapped a step")
	}
}

func TestEventsDeliveredNextFrame(t *testing.T) {
	bus := event.NewBus()
	w := ecs.NewWorld(nil, ecs.WithEventBus(bus))
	var created []ecs.EntityID
	event.Subscribe(bus, func(e ecs.EntityCreated) { created = append(created, e.Entity) })
	l := New(w, nil, Config{}, WithEventBus(bus))

	id := w.CreateEntity()
	if len(created) != 0 {
		t.Fatal("delivered synchronously")
	}
	l.Frame(0)
	if len(created) != 1 || created[0] != id {
		t.Errorf("created = %v", created)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w := ecs.NewWorld(nil)
	var trace []string
	rec := &recorder{trace: &trace}
	ecs.AddComponent(w, w.CreateEntity(), rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := system.NewRunner()
	frames := 0
	runner.Register(system.Func{P: system.PhaseCleanup, Fn: func(ecs.Time) {
		frames++
		if frames == 120 {
			cancel()
		}
	}})
	clock := NewManualClock(time.Unix(0, 0))
	l := New(w, nil, Config{FrameInterval: time.Second / 60}, WithRunner(runner), WithClock(clock))

	if err := l.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if l.Stats().Frames != 120 {
		t.Errorf("frames = %d", l.Stats().Frames)
	}
	if rec.fixed != 120 {
		t.Errorf("fixed = %d, want one per frame", rec.fixed)
	}
}

func TestFPSCounter(t *testing.T) {
	var f fpsCounter
	for i := 0; i < 4; i++ {
		f.tick(0.25)
	}
	if f.current != 4 {
		t.Errorf("fps = %d, want 4", f.current)
	}
	f.tick(0.5)
	if f.current != 4 {
		t.Error("fps changed before a full second")
	}
}

func TestRunReturnsPhysicsError(t *testing.T) {
	l := New(ecs.NewWorld(nil), nil, Config{}, WithSimulator(&fakeSim{failAt: 2}),
		WithClock(NewManualClock(time.Unix(0, 0))))
	if err := l.Run(context.Background()); !errors.Is(err, errDiverged) {
		t.Errorf("err = %v", err)
	}
}
