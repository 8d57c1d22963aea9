package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	mu       sync.Mutex
	sessions []core.Session
	stops    []state.StopChecker
	err      error
	// onWait runs when the orchestrator waits for earlier workers.
	onWait func()
	waits  int
}

func (l *fakeLauncher) Launch(_ context.Context, s core.Session, stop state.StopChecker) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append(l.sessions, s)
	l.stops = append(l.stops, stop)
	return l.err
}

func (l *fakeLauncher) Wait() {
	l.mu.Lock()
	l.waits++
	fn := l.onWait
	l.onWait = nil
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

type fakeSessions struct {
	started []core.Session
	ended   []core.Session
}

func (f *fakeSessions) StartSession(s *core.Session) error {
	f.started = append(f.started, *s)
	return nil
}

func (f *fakeSessions) EndSession(s *core.Session) error {
	f.ended = append(f.ended, *s)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *fakeLauncher) {
	t.Helper()
	l := &fakeLauncher{}
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	o, err := New(DefaultConfig(), NewChannels(), l, opts...)
	require.NoError(t, err)
	return o, l
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func powerOn(t *testing.T, o *Orchestrator) {
	t.Helper()
	o.Submit(message.PowerOn)
	o.Tick(context.Background(), t0)
	require.Equal(t, state.Running, o.State())
	o.ch.Updates.Clear()
	o.ch.MotorCommands.Clear()
}

func TestNew_StartsStopped(t *testing.T) {
	o, l := newTestOrchestrator(t)
	assert.Equal(t, state.Stopped, o.State())
	assert.Equal(t, 0, l.launches())
}

func TestGuardedControlsWhileStopped(t *testing.T) {
	for _, c := range []message.Control{message.Start, message.HomeAxis1, message.HomeAxis2, message.GoToDefault, message.TestLatency} {
		t.Run(c.String(), func(t *testing.T) {
			o, l := newTestOrchestrator(t)
			o.Submit(c)
			o.Tick(context.Background(), t0)

			assert.Equal(t, []message.Update{message.Error{Text: "Robot is at Stop state"}}, o.ch.Updates.Drain())
			assert.Equal(t, 0, o.ch.CameraCommands.Len())
			assert.Equal(t, 0, o.ch.MotorCommands.Len())
			assert.Equal(t, state.Stopped, o.State())
			assert.Equal(t, 0, l.launches())
		})
	}
}

func TestPowerOn_ClearsChannelsAndLaunches(t *testing.T) {
	rec := &fakeSessions{}
	o, l := newTestOrchestrator(t, WithSessionRecorder(rec))

	o.ch.CameraEvents.Send(message.BallPos{})
	o.ch.MotorEvents.Send(message.Encoders{})
	o.ch.CameraCommands.Send(message.StartTracking{})
	o.ch.MotorCommands.Send(message.MoveTo{MM: 10})
	o.ch.Updates.Send(message.Fps{Value: 1})

	o.Submit(message.PowerOn)
	o.Tick(context.Background(), t0)

	assert.Equal(t, state.Running, o.State())
	require.Equal(t, 1, l.launches())
	assert.Equal(t, "session-1", l.sessions[0].ID)
	assert.False(t, l.stops[0].Stopped())

	assert.Equal(t, 0, o.ch.CameraCommands.Len())
	assert.Equal(t, 0, o.ch.MotorCommands.Len())
	assert.Equal(t, []message.Update{message.Status{State: "running", SessionID: "session-1"}}, o.ch.Updates.Drain())

	require.Len(t, rec.started, 1)
	assert.Equal(t, "session-1", rec.started[0].ID)
}

func TestPowerOn_DropsLateMessagesOfPreviousSession(t *testing.T) {
	o, l := newTestOrchestrator(t)
	powerOn(t, o)

	o.Submit(message.Stop)
	o.Tick(context.Background(), t0)
	require.Equal(t, state.Stopped, o.State())

	// the motor worker was mid-strike at Stop and fails once it returns
	l.onWait = func() {
		o.ch.MotorEvents.Send(message.WorkerError{Source: "motor", Err: errors.New("read rotational encoder: serial timeout")})
		o.ch.CameraEvents.Send(message.BallPos{})
	}

	o.Submit(message.PowerOn)
	o.Tick(context.Background(), t0)
	require.Equal(t, state.Running, o.State())
	assert.Equal(t, "session-2", o.Session().ID)
	assert.Equal(t, 0, o.ch.MotorEvents.Len())
	assert.Equal(t, 0, o.ch.CameraEvents.Len())

	o.Tick(context.Background(), t0.Add(time.Millisecond))
	assert.Equal(t, state.Running, o.State())
	for _, u := range o.ch.Updates.Drain() {
		assert.IsNotType(t, message.Error{}, u)
	}
}

func TestPowerOn_IgnoredWhileRunning(t *testing.T) {
	o, l := newTestOrchestrator(t)
	powerOn(t, o)

	o.Submit(message.PowerOn)
	o.Tick(context.Background(), t0)

	assert.Equal(t, 1, l.launches())
	assert.Equal(t, "session-1", o.Session().ID)
}

func TestPowerOn_LaunchFailure(t *testing.T) {
	o, l := newTestOrchestrator(t)
	l.err = errors.New("motor driver missing")

	o.Submit(message.PowerOn)
	o.Tick(context.Background(), t0)

	assert.Equal(t, state.Stopped, o.State())
	require.Equal(t, 1, l.launches())
	assert.True(t, l.stops[0].Stopped())
	assert.Contains(t, o.ch.Updates.Drain(), message.Error{Text: "launching workers: motor driver missing"})
}

func TestStart_SendsStartTracking(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	powerOn(t, o)

	o.Submit(message.Start)
	o.Tick(context.Background(), t0)

	assert.Equal(t, []message.CameraCommand{message.StartTracking{}}, o.ch.CameraCommands.Drain())
	assert.Empty(t, o.ch.Updates.Drain())
}

func TestControlsMapToMotorCommands(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	powerOn(t, o)

	o.Submit(message.HomeAxis1)
	o.Submit(message.HomeAxis2)
	o.Submit(message.GoToDefault)
	o.Submit(message.TestLatency)
	o.ch.MotorEvents.Send(message.Encoders{})
	o.Tick(context.Background(), t0)

	assert.Equal(t, []message.MotorCommand{
		message.Home{Axis: core.AxisLinear},
		message.Home{Axis: core.AxisRotational},
		message.MoveToDefault{},
		message.TestStrike{},
	}, o.ch.MotorCommands.Drain())
}

func TestStop_RaisesSignal(t *testing.T) {
	rec := &fakeSessions{}
	o, l := newTestOrchestrator(t, WithSessionRecorder(rec))
	powerOn(t, o)

	o.Submit(message.Stop)
	o.Tick(context.Background(), t0)

	assert.Equal(t, state.Stopped, o.State())
	assert.True(t, l.stops[0].Stopped())
	assert.Equal(t, []message.Update{message.Status{State: "stopped", SessionID: "session-1"}}, o.ch.Updates.Drain())
	require.Len(t, rec.ended, 1)
	assert.Equal(t, "operator stop", rec.ended[0].Reason)
}

func TestStateNameAndSessionID(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	assert.Equal(t, "stopped", o.StateName())
	assert.Empty(t, o.SessionID())

	powerOn(t, o)
	assert.Equal(t, "running", o.StateName())
	assert.Equal(t, "session-1", o.SessionID())

	o.Submit(message.Stop)
	o.Tick(context.Background(), t0)
	assert.Empty(t, o.SessionID())
	assert.Equal(t, "session-1", o.Session().ID)
}

func TestStop_WhileStoppedIsNoop(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Submit(message.Stop)
	o.Tick(context.Background(), t0)

	assert.Equal(t, state.Stopped, o.State())
	assert.Empty(t, o.ch.Updates.Drain())
}

func TestPowerOnAfterStop_NewSignal(t *testing.T) {
	o, l := newTestOrchestrator(t)
	powerOn(t, o)
	o.Submit(message.Stop)
	o.Tick(context.Background(), t0)
	powerOn(t, o)

	require.Equal(t, 2, l.launches())
	assert.True(t, l.stops[0].Stopped(), "previous session stays stopped")
	assert.False(t, l.stops[1].Stopped())
	assert.Equal(t, "session-2", o.Session().ID)
}

func TestRouting_Running(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	powerOn(t, o)

	path := core.Trajectory{{X: 500, Y: 300}, {X: 800, Y: 250}}
	o.ch.CameraEvents.Send(message.BallPos{Position: core.Point{X: 500, Y: 300}})
	o.ch.CameraEvents.Send(message.PredictedPos{Y: 250, Path: path})
	o.ch.CameraEvents.Send(message.Strike{})
	o.ch.CameraEvents.Send(message.QuickStrike{})
	o.ch.CameraEvents.Send(message.Fps{Value: 60})
	o.ch.MotorEvents.Send(message.Encoders{Values: core.EncoderValues{Linear: 667}})
	o.Tick(context.Background(), t0)

	assert.Equal(t, []message.Update{
		message.BallPos{Position: core.Point{X: 500, Y: 300}},
		message.PredictedPos{Y: 250, Path: path},
		message.Fps{Value: 60},
		message.Encoders{Values: core.EncoderValues{Linear: 667}},
	}, o.ch.Updates.Drain())
	assert.Equal(t, []message.MotorCommand{
		message.MoveTo{MM: 250},
		message.Strike{},
		message.QuickStrike{},
	}, o.ch.MotorCommands.Drain())
}

func TestRouting_DeadbandHoldsBackMoveToOnly(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	powerOn(t, o)

	for _, y := range []float64{200, 204, 212} {
		o.ch.CameraEvents.Send(message.PredictedPos{Y: y})
	}
	o.Tick(context.Background(), t0)

	assert.Equal(t, []message.Update{
		message.PredictedPos{Y: 200},
		message.PredictedPos{Y: 204},
		message.PredictedPos{Y: 212},
	}, o.ch.Updates.Drain())
	var moves []message.MotorCommand
	for _, c := range o.ch.MotorCommands.Drain() {
		if _, ok := c.(message.MoveTo); ok {
			moves = append(moves, c)
		}
	}
	assert.Equal(t, []message.MotorCommand{message.MoveTo{MM: 200}, message.MoveTo{MM: 212}}, moves)
}

func TestRouting_StoppedDropsMotorCommands(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	o.ch.CameraEvents.Send(message.PredictedPos{Y: 250})
	o.ch.CameraEvents.Send(message.Strike{})
	o.Tick(context.Background(), t0)

	assert.Equal(t, []message.Update{message.PredictedPos{Y: 250}}, o.ch.Updates.Drain())
	assert.Equal(t, 0, o.ch.MotorCommands.Len())
}

func TestWorkerError_StopsAndForwardsOnce(t *testing.T) {
	o, l := newTestOrchestrator(t)
	powerOn(t, o)

	o.ch.MotorEvents.Send(message.WorkerError{Source: "motor", Err: errors.New("serial timeout")})
	o.ch.CameraEvents.Send(message.WorkerError{Source: "camera", Err: errors.New("stopped")})
	o.Tick(context.Background(), t0)

	assert.Equal(t, state.Stopped, o.State())
	assert.True(t, l.stops[0].Stopped())

	var errs []message.Error
	for _, u := range o.ch.Updates.Drain() {
		if e, ok := u.(message.Error); ok {
			errs = append(errs, e)
		}
	}
	assert.Len(t, errs, 1)

	o.ch.CameraEvents.Send(message.PredictedPos{Y: 100})
	o.Tick(context.Background(), t0.Add(5*time.Second))
	assert.Equal(t, 0, o.ch.MotorCommands.Len(), "MoveTo dropped until PowerOn")

	powerOn(t, o)
	o.ch.CameraEvents.Send(message.PredictedPos{Y: 100})
	o.ch.MotorEvents.Send(message.Encoders{})
	o.Tick(context.Background(), t0)
	assert.Equal(t, []message.MotorCommand{message.MoveTo{MM: 100}}, o.ch.MotorCommands.Drain())
}

func TestWorkerError_ReportsSourceAndCause(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	powerOn(t, o)

	o.ch.MotorEvents.Send(message.WorkerError{Source: "motor", Err: errors.New("serial timeout")})
	o.Tick(context.Background(), t0)

	assert.Contains(t, o.ch.Updates.Drain(), message.Error{Text: "motor: serial timeout"})
}

func TestHeartbeat(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	powerOn(t, o)
	ctx := context.Background()

	reads := func() int {
		n := 0
		for _, c := range o.ch.MotorCommands.Drain() {
			if _, ok := c.(message.ReadEncoders); ok {
				n++
			}
		}
		return n
	}

	o.Tick(ctx, t0)
	assert.Equal(t, 1, reads())

	o.Tick(ctx, t0.Add(500*time.Millisecond))
	assert.Equal(t, 0, reads())

	o.Tick(ctx, t0.Add(time.Second))
	assert.Equal(t, 1, reads())

	o.ch.MotorEvents.Send(message.Encoders{})
	o.Tick(ctx, t0.Add(3*time.Second))
	assert.Equal(t, 0, reads(), "no heartbeat when a motor message was pending")
}

func TestHeartbeat_NotWhileStopped(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Tick(context.Background(), t0)
	assert.Equal(t, 0, o.ch.MotorCommands.Len())
}

func TestRun_ProcessesSubmittedControls(t *testing.T) {
	o, l := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	o.Submit(message.PowerOn)
	require.Eventually(t, func() bool { return o.State() == state.Running }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, state.Stopped, o.State())
	assert.True(t, l.stops[0].Stopped())
}

func TestChannels_Depths(t *testing.T) {
	ch := NewChannels()
	ch.Updates.Send(message.Fps{})
	ch.Updates.Send(message.Fps{})
	ch.MotorCommands.Send(message.Strike{})

	d := ch.Depths()
	assert.Equal(t, 2, d["updates"])
	assert.Equal(t, 1, d["motor_commands"])
	assert.Equal(t, 0, d["camera_events"])

	ch.Clear()
	for name, n := range ch.Depths() {
		assert.Zero(t, n, name)
	}
}
