package loop

import (
	"math"

	"github.com/l1jgo/enginecore/internal/core/ecs"
)

// DefaultStep is the fixed simulation step in seconds.
const DefaultStep = 1.0 / 60

// stepTolerance lets an accumulator that is a rounding error short of a whole
// step still run it, so 0.1s at 60Hz is exactly 6 steps.
const stepTolerance = 1e-9

// Accumulator converts variable wall-clock deltas into a whole number of fixed
// steps. Leftover time carries into the next frame.
type Accumulator struct {
	step       float64
	acc        float64
	steps      uint64
	maxCatchUp int
}

// Plan is the outcome of one Advance.
type Plan struct {
	Steps   int // fixed steps to run this frame
	Skipped int // steps discarded by the catch-up cap
}

// NewAccumulator returns an accumulator for the given step. step <= 0 selects
// DefaultStep. maxCatchUp <= 0 leaves catch-up unbounded.
func NewAccumulator(step float64, maxCatchUp int) *Accumulator {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		step = DefaultStep
	}
	return &Accumulator{step: step, maxCatchUp: maxCatchUp}
}

func (a *Accumulator) Step() float64 { return a.step }

// Pending is the unconsumed time carried to the next frame.
func (a *Accumulator) Pending() float64 { return a.acc }

// Steps is the number of fixed steps consumed so far.
func (a *Accumulator) Steps() uint64 { return a.steps }

// Advance adds delta seconds and reports how many fixed steps are now due.
// Negative or non-finite deltas add nothing.
func (a *Accumulator) Advance(delta float64) Plan {
	if delta > 0 && !math.IsInf(delta, 0) {
		a.acc += delta
	}
	n := int(math.Floor((a.acc + stepTolerance) / a.step))
	if n <= 0 {
		return Plan{}
	}
	a.acc -= float64(n) * a.step
	if a.acc < 0 {
		a.acc = 0
	}
	p := Plan{Steps: n}
	if a.maxCatchUp > 0 && n > a.maxCatchUp {
		p.Steps, p.Skipped = a.maxCatchUp, n-a.maxCatchUp
	}
	return p
}

// Next consumes one planned step and returns its logical time: Delta is the
// step and Total is steps*step, independent of wall-clock time.
func (a *Accumulator) Next() ecs.Time {
	a.steps++
	return ecs.Time{
		Delta: a.step,
		Total: float64(a.steps) * a.step,
		Frame: a.steps,
	}
}
