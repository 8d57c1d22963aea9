// Package message defines the closed set of messages exchanged between the
// orchestrator and its workers. Every channel direction has its own sealed
// interface; receivers switch over the concrete types exhaustively.
package message

import (
	"fmt"

	"github.com/foosbot/goalkeeper/pkg/core"
)

// CameraEvent flows from the vision worker to the orchestrator.
type CameraEvent interface{ cameraEvent() }

// CameraCommand flows from the orchestrator to the vision worker.
type CameraCommand interface{ cameraCommand() }

// MotorCommand flows from the orchestrator to the actuator worker.
type MotorCommand interface{ motorCommand() }

// MotorEvent flows from the actuator worker to the orchestrator.
type MotorEvent interface{ motorEvent() }

// Update flows from the orchestrator to the presentation collaborators.
type Update interface{ update() }

// BallPos is the current detected ball position.
type BallPos struct {
	Position core.Point
}

// PredictedPos is the lateral position the goalkeeper should cover.
type PredictedPos struct {
	Y      float64
	Path   core.Trajectory
	Reused bool
}

// Strike asks for a full wind-up strike.
type Strike struct{}

// QuickStrike asks for the shortened strike without wind-back.
type QuickStrike struct{}

// Fps reports frames processed during the last second.
type Fps struct {
	Value int
}

// WorkerError reports a fatal worker fault. The worker exits right after
// sending it.
type WorkerError struct {
	Source string
	Err    error
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e WorkerError) Unwrap() error { return e.Err }

func (BallPos) cameraEvent()      {}
func (PredictedPos) cameraEvent() {}
func (Strike) cameraEvent()       {}
func (QuickStrike) cameraEvent()  {}
func (Fps) cameraEvent()          {}
func (WorkerError) cameraEvent()  {}

// StartTracking tells the vision worker to begin ball tracking.
type StartTracking struct{}

func (StartTracking) cameraCommand() {}

// Home homes one axis.
type Home struct {
	Axis core.Axis
}

// MoveTo slides the linear axis to a lateral position in millimetres.
type MoveTo struct {
	MM float64
}

// MoveToDefault returns both axes to their rest positions.
type MoveToDefault struct{}

// ReadEncoders asks the actuator worker for an encoder report.
type ReadEncoders struct{}

// TestStrike runs a strike and reports its latency.
type TestStrike struct{}

func (Home) motorCommand()          {}
func (MoveTo) motorCommand()        {}
func (Strike) motorCommand()        {}
func (QuickStrike) motorCommand()   {}
func (MoveToDefault) motorCommand() {}
func (ReadEncoders) motorCommand()  {}
func (TestStrike) motorCommand()    {}

// Encoders is an encoder report from the actuator worker.
type Encoders struct {
	Values core.EncoderValues
}

func (Encoders) motorEvent()    {}
func (WorkerError) motorEvent() {}

// Status reports a system state change to the presentation collaborators.
type Status struct {
	State     string
	SessionID string
}

// Error is a user-visible error text.
type Error struct {
	Text string
}

func (Encoders) update()     {}
func (BallPos) update()      {}
func (PredictedPos) update() {}
func (Fps) update()          {}
func (Status) update()       {}
func (Error) update()        {}

// Name returns a stable identifier for an update, used as a topic or
// websocket message type.
func Name(u Update) string {
	switch u.(type) {
	case Encoders:
		return "encoder_vals"
	case BallPos:
		return "current_ball_pos"
	case PredictedPos:
		return "predicted_ball_pos"
	case Fps:
		return "fps"
	case Status:
		return "status"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
