// Package prediction estimates where a rolling ball will cross the goal line.
//
// The Predictor keeps a short history of per-frame observations and runs a
// damped, bouncing 2-D simulation from the two most recent samples. Predict
// is pure; strike recommendations are returned as part of the Result and the
// caller decides whether to act on them.
package prediction

import (
	"math"
	"time"

	"github.com/foosbot/goalkeeper/pkg/core"
)

const (
	// epsilon is the remaining in-step time, in seconds, below which a
	// simulation step counts as finished.
	epsilon = 1e-9
	// maxBouncesPerStep caps wall contacts handled inside one step.
	maxBouncesPerStep = 8
)

// Advice is a strike recommendation attached to a prediction.
type Advice int

const (
	AdviceNone Advice = iota
	AdviceStrike
	AdviceQuickStrike
)

func (a Advice) String() string {
	switch a {
	case AdviceStrike:
		return "strike"
	case AdviceQuickStrike:
		return "quick_strike"
	default:
		return "none"
	}
}

// Result is the outcome of one prediction.
type Result struct {
	Kind core.PredictionKind
	// Y is the lateral goal-line position for Direct and Crossing results.
	Y float64
	// Path holds the simulated waypoints of a Crossing result, starting at
	// the current ball position and ending on the goal line.
	Path core.Trajectory
	// Elapsed is the simulated time until the crossing.
	Elapsed time.Duration
	Advice  Advice
}

func noPrediction() Result { return Result{Kind: core.PredictionNone} }

func direct(y float64) Result { return Result{Kind: core.PredictionDirect, Y: y} }

// Predictor owns the observation history and the smoothing buffer.
// It is not safe for concurrent use.
type Predictor struct {
	params  Params
	history *History
	recent  []accepted
}

type accepted struct {
	est Estimate
	ok  bool
}

// New creates a predictor. The history falls back to the default size
// when params leave it unset.
func New(params Params) *Predictor {
	capacity, batch := params.HistoryCapacity, params.EvictBatch
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if batch <= 0 {
		batch = DefaultEvictBatch
	}
	return &Predictor{
		params:  params,
		history: NewHistory(capacity, batch),
	}
}

// Params returns the parameters the predictor was built with.
func (p *Predictor) Params() Params { return p.params }

// History exposes the observation history.
func (p *Predictor) History() *History { return p.history }

// Add records the observation for the current frame.
func (p *Predictor) Add(obs core.Observation) {
	p.history.Push(obs)
}

// Reset forgets all observations and smoothing state.
func (p *Predictor) Reset() {
	p.history.Clear()
	p.recent = p.recent[:0]
}

// Predict computes a prediction from the current history. It does not
// modify the predictor, so repeated calls return identical results.
func (p *Predictor) Predict() Result {
	curr, ok := p.history.At(0)
	if !ok {
		return noPrediction()
	}
	if p.history.Len() < 2 {
		if curr.Detected {
			return direct(curr.Y)
		}
		return noPrediction()
	}
	prev, _ := p.history.At(1)

	prm := p.params
	switch {
	case !curr.Detected:
		return noPrediction()
	case curr.X >= prm.TargetX:
		return direct(curr.Y)
	case !prev.Detected:
		return direct(curr.Y)
	case prm.TargetX-curr.X < prm.StrikeZoneThreshold:
		r := direct(curr.Y)
		r.Advice = AdviceQuickStrike
		return r
	case math.Abs(curr.X-prev.X) < 2*prm.BallRadius:
		return noPrediction()
	}

	vel := curr.Point.Sub(prev.Point).Scale(float64(prm.FrameRate))
	if vel.X <= 0 {
		return noPrediction()
	}
	return p.simulate(curr.Point, vel)
}

func (p *Predictor) simulate(pos, vel core.Point) Result {
	prm := p.params
	dt := prm.frameInterval()
	pos.Y = clamp(pos.Y, prm.FieldTop, prm.FieldBottom)

	path := core.Trajectory{pos}
	elapsed := 0.0

	for step := 0; step < prm.MaxSteps; step++ {
		vel = vel.Scale(prm.Damping)
		if vel.X < prm.SpeedThreshold {
			return noPrediction()
		}

		remaining := dt
		for bounce := 0; remaining > epsilon && bounce <= maxBouncesPerStep; bounce++ {
			next := core.Point{X: pos.X + vel.X*remaining, Y: pos.Y + vel.Y*remaining}

			tx := math.Inf(1)
			if next.X >= prm.TargetX {
				tx = (prm.TargetX - pos.X) / vel.X
			}
			ty, wall := math.Inf(1), 0.0
			if next.Y > prm.FieldBottom {
				ty, wall = (prm.FieldBottom-pos.Y)/vel.Y, prm.FieldBottom
			} else if next.Y < prm.FieldTop {
				ty, wall = (prm.FieldTop-pos.Y)/vel.Y, prm.FieldTop
			}

			if !math.IsInf(tx, 1) && tx <= ty {
				y := clamp(pos.Y+vel.Y*tx, prm.FieldTop, prm.FieldBottom)
				path = appendWaypoint(path, core.Point{X: prm.TargetX, Y: y})
				return p.crossing(y, path, elapsed+tx)
			}
			if !math.IsInf(ty, 1) {
				pos = core.Point{X: pos.X + vel.X*ty, Y: wall}
				path = appendWaypoint(path, pos)
				vel = core.Point{X: vel.X * prm.Restitution, Y: -vel.Y * prm.Restitution}
				remaining -= ty
				elapsed += ty
				continue
			}
			pos = next
			elapsed += remaining
			remaining = 0
		}
		if remaining > epsilon {
			// wall contacts did not settle within the step
			return noPrediction()
		}
		path = appendWaypoint(path, pos)
	}
	return noPrediction()
}

func (p *Predictor) crossing(y float64, path core.Trajectory, elapsedSec float64) Result {
	elapsed := time.Duration(elapsedSec * float64(time.Second))
	if elapsed >= p.params.MaxCrossingTime {
		return noPrediction()
	}
	r := Result{Kind: core.PredictionCrossing, Y: y, Path: path, Elapsed: elapsed}
	switch {
	case elapsed <= p.params.QuickStrikeWindow:
		r.Advice = AdviceQuickStrike
	case elapsed <= p.params.strikeLead():
		r.Advice = AdviceStrike
	}
	return r
}

func appendWaypoint(path core.Trajectory, pt core.Point) core.Trajectory {
	if last, ok := path.Last(); ok && last == pt {
		return path
	}
	return append(path, pt)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
