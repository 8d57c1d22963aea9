package prediction

import (
	"math"

	"github.com/foosbot/goalkeeper/pkg/core"
)

// Estimate is a smoothed goal-line position ready to be sent to the
// actuator.
type Estimate struct {
	Kind   core.PredictionKind
	Y      float64
	Path   core.Trajectory
	Advice Advice
	// Reused marks an estimate carried over from an earlier frame because
	// the current frame produced no prediction.
	Reused bool
}

// Estimate wraps Predict with output smoothing. When Predict has nothing,
// the most recent accepted estimate is reused as long as the ball has not
// visibly moved away from it; otherwise the raw ball position is returned.
// Every output, including "nothing", is remembered for later lookbacks.
func (p *Predictor) Estimate() (Estimate, bool) {
	r := p.Predict()
	if r.Kind != core.PredictionNone {
		est := Estimate{Kind: r.Kind, Y: r.Y, Path: r.Path, Advice: r.Advice}
		p.remember(est, true)
		return est, true
	}

	last, found := p.lastAccepted()
	if !found {
		p.remember(Estimate{}, false)
		return Estimate{}, false
	}

	curr, _ := p.history.At(0)
	if curr.Detected && math.Abs(last.Y-curr.Y) > 2*p.params.BallRadius {
		est := Estimate{Kind: core.PredictionDirect, Y: curr.Y}
		p.remember(est, true)
		return est, true
	}

	est := Estimate{Kind: last.Kind, Y: last.Y, Path: last.Path, Reused: true}
	p.remember(est, true)
	return est, true
}

func (p *Predictor) lastAccepted() (Estimate, bool) {
	for i := len(p.recent) - 1; i >= 0; i-- {
		if p.recent[i].ok {
			return p.recent[i].est, true
		}
	}
	return Estimate{}, false
}

func (p *Predictor) remember(est Estimate, ok bool) {
	depth := p.params.SmoothingDepth
	if depth <= 0 {
		depth = 1
	}
	if len(p.recent) >= depth {
		n := copy(p.recent, p.recent[len(p.recent)-depth+1:])
		p.recent = p.recent[:n]
	}
	p.recent = append(p.recent, accepted{est: est, ok: ok})
}
