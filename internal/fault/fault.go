// Package fault classifies the errors that cross the Stopped/Running
// boundary. Detection gaps are not errors and have no entry here.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing calibration data or an actuator that
	// cannot be reached at startup. It aborts startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrActuator marks a hardware or transport failure inside a worker. It
	// stops the whole session.
	ErrActuator = errors.New("actuator fault")
)

// StopStateMessage is what operators see when they issue a guarded command
// while the robot is stopped.
const StopStateMessage = "Robot is at Stop state"

// GuardViolation is returned when a guarded command arrives while the
// system is Stopped. It is reported to the operator and changes nothing.
type GuardViolation struct {
	Command string
}

func (g *GuardViolation) Error() string {
	return StopStateMessage
}

// Configuration wraps err as a configuration error.
func Configuration(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

// Configurationf formats a configuration error.
func Configurationf(format string, args ...any) error {
	return Configuration(fmt.Errorf(format, args...))
}

// Actuator wraps err as an actuator fault.
func Actuator(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrActuator, err)
}

// IsGuardViolation reports whether err is a GuardViolation.
func IsGuardViolation(err error) bool {
	var g *GuardViolation
	return errors.As(err, &g)
}
