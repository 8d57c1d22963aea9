package motor

import (
	"math"
	"time"
)

// Measurements are the encoder constants of the goalkeeper rod.
type Measurements struct {
	// RotationCounts is the rotational encoder delta for one full turn.
	RotationCounts int64
	// RotationalDefault has the player facing straight down.
	RotationalDefault int64
	// StrikeOffset is how far back from the nearest turn boundary the
	// player winds up before a strike.
	StrikeOffset int64
	// LinearDefault centres the goalkeeper in front of the goal.
	LinearDefault int64
	// MMToEncoder converts linear millimetres to encoder counts.
	MMToEncoder     float64
	LinearLimit     int64
	RotationalLimit int64
}

// DefaultMeasurements returns the values measured on the reference table.
func DefaultMeasurements() Measurements {
	return Measurements{
		RotationCounts:    145,
		RotationalDefault: 135,
		StrikeOffset:      110,
		LinearDefault:     667,
		MMToEncoder:       13,
		LinearLimit:       1600,
		RotationalLimit:   2000,
	}
}

// LinearTarget converts a lateral position to a linear encoder target,
// clamped to the travel of the rod.
func (m Measurements) LinearTarget(mm float64) int64 {
	enc := int64(math.Round(mm * m.MMToEncoder))
	return max(0, min(m.LinearLimit, enc))
}

// EncoderToMM converts a linear encoder value to millimetres.
func (m Measurements) EncoderToMM(enc int64) float64 {
	return math.Round(float64(enc)/m.MMToEncoder*100) / 100
}

// EncoderToDegrees reports the rotational encoder position within one turn.
func (m Measurements) EncoderToDegrees(enc int64) float64 {
	return float64(mod(enc, m.RotationCounts))
}

// WindBackTarget is the rotational encoder value at which the wind-up of a
// strike starting from current ends.
func (m Measurements) WindBackTarget(current int64) int64 {
	rem := mod(current, m.RotationCounts)
	nearest := -rem
	if 2*rem > m.RotationCounts {
		nearest = m.RotationCounts - rem
	}
	return nearest + m.StrikeOffset
}

func mod(a, n int64) int64 {
	return ((a % n) + n) % n
}

// Timing holds the pauses and bounds used by the sub-controllers.
type Timing struct {
	// ManagerInterval is the polling interval of the command router.
	ManagerInterval time.Duration
	// ControllerInterval is the polling interval of each sub-controller.
	ControllerInterval time.Duration
	// SpinInterval is the pause between encoder reads while waiting for
	// a position to be reached.
	SpinInterval time.Duration
	// SpinTimeout bounds any wait for motion to complete.
	SpinTimeout      time.Duration
	HomePoll         time.Duration
	HomeTimeout      time.Duration
	StrikeDrive      time.Duration
	StrikeFollow     time.Duration
	QuickStrikeDwell time.Duration
}

// DefaultTiming returns the timings used on the reference table.
func DefaultTiming() Timing {
	return Timing{
		ManagerInterval:    10 * time.Millisecond,
		ControllerInterval: time.Millisecond,
		SpinInterval:       time.Millisecond,
		SpinTimeout:        2 * time.Second,
		HomePoll:           400 * time.Millisecond,
		HomeTimeout:        15 * time.Second,
		StrikeDrive:        80 * time.Millisecond,
		StrikeFollow:       20 * time.Millisecond,
		QuickStrikeDwell:   100 * time.Millisecond,
	}
}

// Duty cycles, in driver speed units, of the open-loop moves.
const (
	homeSpeed     = 30
	windBackSpeed = 35
	strikeSpeed   = 120
	followSpeed   = 60
)

var (
	defaultProfile = Profile{Accel: 14000, Speed: 2000, Decel: 14000}
	quickProfile   = Profile{Accel: 48000, Speed: 6000, Decel: 32000}
)
