package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/core/event"
	"github.com/l1jgo/enginecore/internal/core/loop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type memSink struct {
	batches []Batch
	err     error
}

func (s *memSink) WriteBatch(_ context.Context, b Batch) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, b)
	return nil
}

type rig struct {
	world *ecs.World
	loop  *loop.Loop
	rec   *Recorder
	sink  *memSink
}

func newRig(t *testing.T, log *zap.Logger, flushEvery int) *rig {
	t.Helper()
	bus := event.NewBus()
	w := ecs.NewWorld(log, ecs.WithEventBus(bus))
	lp := loop.New(w, log, loop.Config{FixedStep: 1.0 / 60}, loop.WithEventBus(bus))
	sink := &memSink{}
	rec := NewRecorder(w, lp, sink, log, flushEvery)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	rec.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	rec.Subscribe(bus)
	lp.Runner().Register(rec)
	return &rig{world: w, loop: lp, rec: rec, sink: sink}
}

func (r *rig) frame(t *testing.T) {
	t.Helper()
	if err := r.loop.Frame(1.0 / 60); err != nil {
		t.Fatal(err)
	}
}

func TestRecorderFlushesEveryN(t *testing.T) {
	r := newRig(t, zaptest.NewLogger(t), 3)
	a := r.world.CreateEntity()
	r.world.CreateEntity()

	r.frame(t)
	r.world.RemoveEntity(a)
	r.frame(t)
	if len(r.sink.batches) != 0 || r.rec.Buffered() != 2 {
		t.Fatalf("flushed early: %d batches, %d buffered", len(r.sink.batches), r.rec.Buffered())
	}
	r.frame(t)

	if len(r.sink.batches) != 1 {
		t.Fatalf("batches = %d", len(r.sink.batches))
	}
	b := r.sink.batches[0]
	if len(b.Samples) != 3 || b.Created != 2 || b.Removed != 1 {
		t.Fatalf("batch = %d samples, created %d, removed %d", len(b.Samples), b.Created, b.Removed)
	}
	for i, s := range b.Samples {
		if s.Frame != uint64(i+1) || s.FixedSteps != uint64(i+1) {
			t.Errorf("sample %d: frame %d fixed %d", i, s.Frame, s.FixedSteps)
		}
	}
	if b.Samples[0].Entities != 2 || b.Samples[1].Entities != 1 {
		t.Errorf("entities = %d, %d", b.Samples[0].Entities, b.Samples[1].Entities)
	}
	if !b.Samples[2].At.After(b.Samples[0].At) {
		t.Error("timestamps not increasing")
	}
	if r.rec.Buffered() != 0 || r.rec.Flushes() != 1 {
		t.Errorf("buffered %d flushes %d", r.rec.Buffered(), r.rec.Flushes())
	}
}

func TestRecorderManualFlush(t *testing.T) {
	r := newRig(t, zaptest.NewLogger(t), 100)
	if err := r.rec.Flush(context.Background()); err != nil || len(r.sink.batches) != 0 {
		t.Fatal("empty flush wrote a batch")
	}
	r.frame(t)
	r.frame(t)
	if err := r.rec.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(r.sink.batches) != 1 || len(r.sink.batches[0].Samples) != 2 {
		t.Fatalf("batches = %+v", r.sink.batches)
	}
}

func TestRecorderDropsFailedBatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newRig(t, zap.New(core), 2)
	r.sink.err = errors.New("connection refused")

	for i := 0; i < 4; i++ {
		r.frame(t)
	}
	if r.rec.Dropped() != 4 || r.rec.Flushes() != 0 {
		t.Errorf("dropped %d flushes %d", r.rec.Dropped(), r.rec.Flushes())
	}
	if n := logs.FilterMessage("telemetry flush failed").Len(); n != 2 {
		t.Errorf("warnings = %d", n)
	}

	r.sink.err = nil
	r.frame(t)
	r.frame(t)
	if len(r.sink.batches) != 1 || r.rec.Flushes() != 1 {
		t.Error("recorder did not recover after sink came back")
	}
}

func TestNewRecorderClampsFlushEvery(t *testing.T) {
	w := ecs.NewWorld(nil)
	sink := &memSink{}
	rec := NewRecorder(w, nil, sink, nil, 0)
	rec.Update(ecs.Time{Frame: 1})
	if len(sink.batches) != 1 {
		t.Errorf("flush_every 0 should flush every frame, got %d batches", len(sink.batches))
	}
}
