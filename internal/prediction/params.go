package prediction

import (
	"time"

	"github.com/foosbot/goalkeeper/internal/fault"
)

// Params are the fixed calibration and tuning inputs of the predictor.
// Distances are field-relative millimetres, speeds millimetres per second.
type Params struct {
	TargetX             float64
	FieldTop            float64
	FieldBottom         float64
	BallRadius          float64
	FrameRate           int
	Damping             float64
	Restitution         float64
	SpeedThreshold      float64
	StrikeZoneThreshold float64

	// MaxCrossingTime bounds how far ahead a crossing is still trusted.
	MaxCrossingTime time.Duration
	// QuickStrikeWindow is the horizon under which a simulated crossing
	// recommends a quick strike.
	QuickStrikeWindow time.Duration
	// StrikeLeadFrames recommends a full strike when the crossing is at most
	// this many frames away.
	StrikeLeadFrames int
	// MaxSteps caps the number of simulation steps.
	MaxSteps int
	// SmoothingDepth is how many accepted outputs Estimate looks back over.
	SmoothingDepth int
	// HistoryCapacity and EvictBatch size the observation history. Zero
	// selects the defaults.
	HistoryCapacity int
	EvictBatch      int
}

// DefaultParams returns tuning defaults. Field geometry is left zero and
// must come from calibration.
func DefaultParams() Params {
	return Params{
		BallRadius:          17.5,
		FrameRate:           60,
		Damping:             0.9,
		Restitution:         0.5,
		SpeedThreshold:      50,
		StrikeZoneThreshold: 50,
		MaxCrossingTime:     600 * time.Millisecond,
		QuickStrikeWindow:   100 * time.Millisecond,
		StrikeLeadFrames:    10,
		MaxSteps:            1000,
		SmoothingDepth:      10,
	}
}

// Validate reports parameters the simulation cannot run with as a
// configuration error.
func (p Params) Validate() error {
	switch {
	case p.FrameRate <= 0:
		return fault.Configurationf("frame rate must be positive, got %d", p.FrameRate)
	case p.FieldTop >= p.FieldBottom:
		return fault.Configurationf("field top %g must be below field bottom %g", p.FieldTop, p.FieldBottom)
	case p.BallRadius < 0:
		return fault.Configurationf("ball radius must not be negative, got %g", p.BallRadius)
	case p.Damping <= 0 || p.Damping > 1:
		return fault.Configurationf("damping must be in (0,1], got %g", p.Damping)
	case p.Restitution < 0 || p.Restitution > 1:
		return fault.Configurationf("restitution must be in [0,1], got %g", p.Restitution)
	case p.SpeedThreshold < 0:
		return fault.Configurationf("speed threshold must not be negative, got %g", p.SpeedThreshold)
	case p.MaxSteps <= 0:
		return fault.Configurationf("max steps must be positive, got %d", p.MaxSteps)
	}
	return nil
}

func (p Params) frameInterval() float64 {
	return 1 / float64(p.FrameRate)
}

func (p Params) strikeLead() time.Duration {
	return time.Duration(p.StrikeLeadFrames) * time.Second / time.Duration(p.FrameRate)
}
