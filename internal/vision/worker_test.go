package vision

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/prediction"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	obs []core.Observation
	err error
}

func (s *sliceSource) Next(context.Context) (core.Observation, error) {
	if len(s.obs) == 0 {
		if s.err != nil {
			return core.Observation{}, s.err
		}
		return core.Observation{}, io.EOF
	}
	o := s.obs[0]
	s.obs = s.obs[1:]
	return o, nil
}

func (s *sliceSource) Close() error { return nil }

type memRecorder struct {
	mu          sync.Mutex
	positions   []core.BallPosition
	predictions []core.Prediction
}

func (r *memRecorder) RecordBallPosition(p *core.BallPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, *p)
	return nil
}

func (r *memRecorder) RecordPrediction(p *core.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions = append(r.predictions, *p)
	return nil
}

// tickClock advances by step on every call.
type tickClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func testPredictor() *prediction.Predictor {
	p := prediction.DefaultParams()
	p.TargetX = 800
	p.FieldTop = 50
	p.FieldBottom = 450
	p.BallRadius = 10
	return prediction.New(p)
}

func newTestWorker(src FrameSource, opts ...Option) (*Worker, *channel.Mailbox[message.CameraCommand], *channel.Mailbox[message.CameraEvent]) {
	in := channel.New[message.CameraCommand]()
	out := channel.New[message.CameraEvent]()
	cfg := DefaultConfig()
	cfg.IdleInterval = time.Millisecond
	return NewWorker(cfg, src, testPredictor(), in, out, opts...), in, out
}

func TestWorker_WaitsForStartTracking(t *testing.T) {
	src := &sliceSource{obs: []core.Observation{core.Detected(100, 100)}}
	w, _, out := newTestWorker(src)
	stop := state.NewSignal()

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), stop) }()

	time.Sleep(20 * time.Millisecond)
	stop.Set()
	require.NoError(t, <-done)
	assert.Equal(t, 0, out.Len())
	assert.Len(t, src.obs, 1, "no frame consumed before tracking starts")
}

func TestWorker_StrikeZoneEmitsQuickStrike(t *testing.T) {
	src := &sliceSource{obs: []core.Observation{core.Detected(760, 110), core.Detected(790, 120)}}
	rec := &memRecorder{}
	w, in, out := newTestWorker(src, WithRecorder(rec, "s1"))
	in.Send(message.StartTracking{})

	require.NoError(t, w.Run(context.Background(), state.NewSignal()))

	assert.Equal(t, []message.CameraEvent{
		message.BallPos{Position: core.Point{X: 760, Y: 110}},
		message.PredictedPos{Y: 110},
		message.BallPos{Position: core.Point{X: 790, Y: 120}},
		message.PredictedPos{Y: 120},
		message.QuickStrike{},
	}, out.Drain())

	require.Len(t, rec.positions, 2)
	assert.Equal(t, "s1", rec.positions[0].SessionID)
	assert.Equal(t, uint64(2), rec.positions[1].Frame)
	require.Len(t, rec.predictions, 2)
	assert.Equal(t, core.PredictionDirect, rec.predictions[1].Kind)
}

func TestWorker_ReportsEveryPrediction(t *testing.T) {
	src := &sliceSource{obs: []core.Observation{
		core.Detected(300, 200),
		core.Missing(),
		core.Detected(300, 204),
	}}
	w, in, out := newTestWorker(src)
	in.Send(message.StartTracking{})

	require.NoError(t, w.Run(context.Background(), state.NewSignal()))

	var ys []float64
	for _, ev := range out.Drain() {
		if p, ok := ev.(message.PredictedPos); ok {
			ys = append(ys, p.Y)
		}
	}
	require.NotEmpty(t, ys)
	assert.Equal(t, 200.0, ys[0])
	assert.Equal(t, 204.0, ys[len(ys)-1])
}

func TestWorker_ReportsFps(t *testing.T) {
	obs := make([]core.Observation, 120)
	for i := range obs {
		obs[i] = core.Missing()
	}
	clock := &tickClock{t: time.Unix(0, 0), step: 10 * time.Millisecond}
	w, in, out := newTestWorker(&sliceSource{obs: obs}, WithClock(clock.Now))
	in.Send(message.StartTracking{})

	require.NoError(t, w.Run(context.Background(), state.NewSignal()))

	var fps []message.Fps
	for _, ev := range out.Drain() {
		if f, ok := ev.(message.Fps); ok {
			fps = append(fps, f)
		}
	}
	require.NotEmpty(t, fps)
	assert.Equal(t, 100, fps[0].Value)
	assert.Equal(t, 100, w.LastFps())
}

func TestWorker_SourceFailureIsFault(t *testing.T) {
	cause := errors.New("camera unplugged")
	w, in, _ := newTestWorker(&sliceSource{err: cause})
	in.Send(message.StartTracking{})

	err := w.Run(context.Background(), state.NewSignal())
	assert.ErrorIs(t, err, fault.ErrActuator)
	assert.ErrorIs(t, err, cause)
}

func TestWorker_StopsOnSignal(t *testing.T) {
	src := NewSyntheticSource(SyntheticConfig{FrameRate: 60, TargetX: 800, FieldTop: 50, FieldBottom: 450, Paced: true, Seed: 1})
	defer src.Close()
	w, in, out := newTestWorker(src)
	in.Send(message.StartTracking{})
	stop := state.NewSignal()

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), stop) }()

	require.Eventually(t, func() bool { return out.Len() > 0 }, time.Second, time.Millisecond)
	stop.Set()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
