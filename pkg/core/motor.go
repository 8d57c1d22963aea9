// pkg/core/motor.go
package core

import "fmt"

// Axis identifies one of the two goalkeeper actuators.
type Axis int

const (
	// AxisLinear slides the goalkeeper rod across the goal (motor 1).
	AxisLinear Axis = iota + 1
	// AxisRotational spins the rod to strike the ball (motor 2).
	AxisRotational
)

func (a Axis) String() string {
	switch a {
	case AxisLinear:
		return "linear"
	case AxisRotational:
		return "rotational"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// EncoderValues is a snapshot of both actuator encoders with their
// physical-unit conversions.
type EncoderValues struct {
	Linear      int64   `json:"linear"`
	Rotational  int64   `json:"rotational"`
	LinearMM    float64 `json:"linearMm"`
	RotationDeg float64 `json:"rotationDeg"`
}

// StrikeKind distinguishes the full wind-up strike from the quick variant.
type StrikeKind string

const (
	StrikeFull  StrikeKind = "strike"
	StrikeQuick StrikeKind = "quick_strike"
)
