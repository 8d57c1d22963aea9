package motor

import (
	"context"
	"log/slog"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/pkg/core"
)

type linearCommand interface{ linearCommand() }

type linearHome struct{}

type linearMove struct{ target int64 }

type linearDefault struct{}

func (linearHome) linearCommand()    {}
func (linearMove) linearCommand()    {}
func (linearDefault) linearCommand() {}

// Linear slides the goalkeeper across the goal.
type Linear struct {
	bus    *Bus
	meas   Measurements
	timing Timing
	inbox  *channel.Mailbox[linearCommand]
	logger *slog.Logger
}

func newLinear(bus *Bus, meas Measurements, timing Timing, logger *slog.Logger) *Linear {
	return &Linear{
		bus:    bus,
		meas:   meas,
		timing: timing,
		inbox:  channel.New[linearCommand](),
		logger: logger.With("axis", core.AxisLinear.String()),
	}
}

func (l *Linear) run(ctx context.Context, stop state.StopChecker) error {
	err := loop(ctx, stop, l.inbox, l.timing.ControllerInterval, l.exec)
	if stopErr := l.bus.Drive(core.AxisLinear, 0); stopErr != nil {
		l.logger.Debug("Failed to stop axis on exit", "error", stopErr)
	}
	return err
}

func (l *Linear) exec(cmd linearCommand) error {
	switch c := cmd.(type) {
	case linearHome:
		return l.home()
	case linearMove:
		return l.bus.MoveTo(core.AxisLinear, defaultProfile.At(c.target))
	case linearDefault:
		return l.bus.MoveTo(core.AxisLinear, defaultProfile.At(l.meas.LinearDefault))
	}
	return nil
}

// home drives toward the limit switch until the controller reports the
// axis has stopped. The firmware zeroes the encoder on the switch.
func (l *Linear) home() error {
	l.logger.Info("Homing")
	if err := l.bus.Drive(core.AxisLinear, -homeSpeed); err != nil {
		return err
	}
	err := waitFor("linear limit switch", l.timing.HomePoll, l.timing.HomeTimeout, func() (bool, error) {
		speed, err := l.bus.ReadSpeed(core.AxisLinear)
		return speed == 0, err
	})
	if err != nil {
		return err
	}
	if err := l.bus.Drive(core.AxisLinear, 0); err != nil {
		return err
	}
	l.logger.Info("Homed")
	return nil
}
