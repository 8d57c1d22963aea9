package motor

import (
	"context"
	"log/slog"
	"time"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/internal/strike"
	"github.com/foosbot/goalkeeper/pkg/core"
)

type rotationalCommand interface{ rotationalCommand() }

type rotationalHome struct{}

type rotationalStrike struct{ kind core.StrikeKind }

type rotationalDefault struct{}

type rotationalTestStrike struct{ queued time.Time }

func (rotationalHome) rotationalCommand()       {}
func (rotationalStrike) rotationalCommand()     {}
func (rotationalDefault) rotationalCommand()    {}
func (rotationalTestStrike) rotationalCommand() {}

// StrikeRecorder receives every strike request with its outcome.
type StrikeRecorder interface {
	RecordStrike(e *core.StrikeEvent) error
}

// Rotational spins the goalkeeper to strike the ball.
type Rotational struct {
	bus       *Bus
	meas      Measurements
	timing    Timing
	debouncer *strike.Debouncer
	inbox     *channel.Mailbox[rotationalCommand]
	recorder  StrikeRecorder
	sessionID string
	now       func() time.Time
	logger    *slog.Logger
}

func (r *Rotational) run(ctx context.Context, stop state.StopChecker) error {
	err := loop(ctx, stop, r.inbox, r.timing.ControllerInterval, r.exec)
	if stopErr := r.bus.Drive(core.AxisRotational, 0); stopErr != nil {
		r.logger.Debug("Failed to stop axis on exit", "error", stopErr)
	}
	return err
}

func (r *Rotational) exec(cmd rotationalCommand) error {
	switch c := cmd.(type) {
	case rotationalHome:
		return r.bus.SetEncoder(core.AxisRotational, r.meas.RotationCounts)
	case rotationalDefault:
		return r.moveToDefault()
	case rotationalStrike:
		return r.debouncedStrike(c.kind)
	case rotationalTestStrike:
		return r.testStrike(c.queued)
	}
	return nil
}

func (r *Rotational) debouncedStrike(kind core.StrikeKind) error {
	start := r.now()
	seq := r.strike
	if kind == core.StrikeQuick {
		seq = r.quickStrike
	}
	executed, err := r.debouncer.Try(seq)
	if !executed {
		r.logger.Debug("Strike dropped by cooldown", "kind", kind)
	}
	r.record(kind, "camera", executed, r.now().Sub(start))
	return err
}

func (r *Rotational) record(kind core.StrikeKind, source string, executed bool, d time.Duration) {
	if r.recorder == nil {
		return
	}
	ev := &core.StrikeEvent{
		SessionID: r.sessionID,
		Time:      r.now(),
		Kind:      kind,
		Source:    source,
		Executed:  executed,
		Duration:  d,
	}
	if err := r.recorder.RecordStrike(ev); err != nil {
		r.logger.Warn("Failed to record strike", "error", err)
	}
}

// strike winds back to the strike start, then drives forward through the
// ball and returns to the rest position.
func (r *Rotational) strike() error {
	current, err := r.bus.ReadEncoder(core.AxisRotational)
	if err != nil {
		return err
	}
	target := r.meas.WindBackTarget(current)

	if err := r.bus.Drive(core.AxisRotational, -windBackSpeed); err != nil {
		return err
	}
	err = waitFor("strike wind-back", r.timing.SpinInterval, r.timing.SpinTimeout, func() (bool, error) {
		enc, err := r.bus.ReadEncoder(core.AxisRotational)
		return enc <= target, err
	})
	if err != nil {
		return err
	}
	if err := r.bus.Drive(core.AxisRotational, 0); err != nil {
		return err
	}
	if err := r.bus.Drive(core.AxisRotational, strikeSpeed); err != nil {
		return err
	}
	time.Sleep(r.timing.StrikeDrive)
	if err := r.bus.Drive(core.AxisRotational, followSpeed); err != nil {
		return err
	}
	time.Sleep(r.timing.StrikeFollow)
	return r.moveToDefault()
}

func (r *Rotational) quickStrike() error {
	if err := r.bus.MoveTo(core.AxisRotational, quickProfile.At(r.meas.RotationCounts+60)); err != nil {
		return err
	}
	time.Sleep(r.timing.QuickStrikeDwell)
	if err := r.moveToDefault(); err != nil {
		return err
	}
	time.Sleep(r.timing.QuickStrikeDwell)
	return nil
}

// testStrike bypasses the cooldown and logs how long the command took from
// being queued to the end of the strike.
func (r *Rotational) testStrike(queued time.Time) error {
	start := r.now()
	r.logger.Info("Test strike started", "queueLatency", start.Sub(queued))
	if err := r.strike(); err != nil {
		return err
	}
	end := r.now()
	r.logger.Info("Test strike finished", "strikeDuration", end.Sub(start), "totalLatency", end.Sub(queued))
	r.record(core.StrikeFull, "test", true, end.Sub(start))
	return nil
}

func (r *Rotational) moveToDefault() error {
	return r.bus.MoveTo(core.AxisRotational, defaultProfile.At(r.meas.RotationalDefault))
}
