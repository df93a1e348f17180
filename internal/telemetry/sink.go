package telemetry

import (
	"context"
	"fmt"
	"time"
)

// FrameSample is one frame's worth of engine counters.
type FrameSample struct {
	Frame        uint64
	FixedSteps   uint64
	SkippedSteps uint64
	Entities     int
	Components   int
	FPS          int
	HookPanics   uint64
	At           time.Time
}

// Batch is what a Recorder hands to its Sink on each flush. Created and
// Removed count entity events delivered since the previous flush.
type Batch struct {
	Samples []FrameSample
	Created int
	Removed int
}

// Sink persists telemetry batches.
type Sink interface {
	WriteBatch(ctx context.Context, b Batch) error
}

// PostgresSink writes batches into the frame_samples and entity_churn tables.
type PostgresSink struct {
	db    *DB
	runID string
}

func NewPostgresSink(db *DB, runID string) *PostgresSink {
	return &PostgresSink{db: db, runID: runID}
}

// WriteBatch writes the whole batch in one transaction.
func (s *PostgresSink) WriteBatch(ctx context.Context, b Batch) error {
	if len(b.Samples) == 0 {
		return nil
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("telemetry begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range b.Samples {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frame_samples (run_id, frame, fixed_steps, skipped_steps, entities, components, fps, hook_panics, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.runID, int64(f.Frame), int64(f.FixedSteps), int64(f.SkippedSteps),
			f.Entities, f.Components, f.FPS, int64(f.HookPanics), f.At,
		); err != nil {
			return fmt.Errorf("telemetry insert sample: %w", err)
		}
	}

	first, last := b.Samples[0].Frame, b.Samples[len(b.Samples)-1].Frame
	if _, err := tx.Exec(ctx,
		`INSERT INTO entity_churn (run_id, first_frame, last_frame, created, removed)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.runID, int64(first), int64(last), b.Created, b.Removed,
	); err != nil {
		return fmt.Errorf("telemetry insert churn: %w", err)
	}

	return tx.Commit(ctx)
}
